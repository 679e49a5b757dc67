package gchain

// SCALE layouts for values whose in-memory form does not map directly
// onto the wire form: optional byte slices become Option values,
// and block numbers inside headers are compact-encoded.

type scaleKeyValue struct {
	Key   []byte
	Value *[]byte
}

func toSCALEKeyValues(kvs []KeyValue) []scaleKeyValue {
	if kvs == nil {
		return nil
	}
	out := make([]scaleKeyValue, len(kvs))
	for i, kv := range kvs {
		out[i].Key = kv.Key
		if kv.Value != nil {
			v := kv.Value
			out[i].Value = &v
		}
	}
	return out
}

func fromSCALEKeyValues(skvs []scaleKeyValue) []KeyValue {
	if len(skvs) == 0 {
		return nil
	}
	out := make([]KeyValue, len(skvs))
	for i, skv := range skvs {
		out[i].Key = nonNil(skv.Key)
		if skv.Value != nil {
			out[i].Value = nonNil(*skv.Value)
		}
	}
	return out
}

type scaleChildStorageChanges struct {
	StorageKey []byte
	Changes    []scaleKeyValue
}

type scaleStorageChanges struct {
	MainStorageChanges  []scaleKeyValue
	ChildStorageChanges []scaleChildStorageChanges
}

func (c StorageChanges) toSCALE() scaleStorageChanges {
	out := scaleStorageChanges{
		MainStorageChanges: toSCALEKeyValues(c.MainStorageChanges),
	}
	if len(c.ChildStorageChanges) > 0 {
		out.ChildStorageChanges = make([]scaleChildStorageChanges, len(c.ChildStorageChanges))
		for i, cc := range c.ChildStorageChanges {
			out.ChildStorageChanges[i] = scaleChildStorageChanges{
				StorageKey: cc.StorageKey,
				Changes:    toSCALEKeyValues(cc.Changes),
			}
		}
	}
	return out
}

func (sc scaleStorageChanges) toStorageChanges() StorageChanges {
	out := StorageChanges{
		MainStorageChanges: fromSCALEKeyValues(sc.MainStorageChanges),
	}
	if len(sc.ChildStorageChanges) > 0 {
		out.ChildStorageChanges = make([]ChildStorageChanges, len(sc.ChildStorageChanges))
		for i, cc := range sc.ChildStorageChanges {
			out.ChildStorageChanges[i] = ChildStorageChanges{
				StorageKey: nonNil(cc.StorageKey),
				Changes:    fromSCALEKeyValues(cc.Changes),
			}
		}
	}
	return out
}

type scaleBlockHeaderWithChanges struct {
	BlockHeader    scaleHeader
	StorageChanges scaleStorageChanges
}

type scaleAuthoritySetChange struct {
	AuthoritySet AuthoritySet
	Proof        StorageProof
}

func toSCALEAuthoritySetChange(c *AuthoritySetChange) *scaleAuthoritySetChange {
	if c == nil {
		return nil
	}
	return &scaleAuthoritySetChange{
		AuthoritySet: c.AuthoritySet,
		Proof:        c.Proof,
	}
}

func fromSCALEAuthoritySetChange(c *scaleAuthoritySetChange) *AuthoritySetChange {
	if c == nil {
		return nil
	}
	return &AuthoritySetChange{
		AuthoritySet: c.AuthoritySet,
		Proof:        c.Proof,
	}
}

func toSCALEHeaders(hs []Header) []scaleHeader {
	out := make([]scaleHeader, len(hs))
	for i, h := range hs {
		out[i] = h.toSCALE()
	}
	return out
}

func fromSCALEHeaders(shs []scaleHeader) ([]Header, error) {
	out := make([]Header, len(shs))
	for i, sh := range shs {
		h, err := sh.toHeader()
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

// nonNil keeps decoded empty byte strings distinct from deletions.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
