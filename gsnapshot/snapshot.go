// Package gsnapshot exports and imports a complete storage image.
//
// A snapshot is a snappy-framed stream.
// Inside the stream, the magic bytes are followed by records,
// each being a uvarint length and a SCALE-encoded value:
// first a header with the image root and the number of pairs,
// then one record per pair, main storage first, then child tries in key order.
// Derived child root entries in main storage are not exported;
// they are recomputed on import.
package gsnapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ChainSafe/gossamer/pkg/scale"
	"github.com/golang/snappy"
	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gtrie"
)

const magic = "GLSNAP\x00\x01"

// Records larger than this are rejected on import.
const maxRecordSize = 64 << 20

type header struct {
	Root   gchain.Hash
	NPairs uint64
}

type pair struct {
	ChildKey []byte
	Key      []byte
	Value    []byte
}

// RootMismatchError is returned by [Import]
// when the imported pairs do not produce the root in the snapshot header.
type RootMismatchError struct {
	Want, Got gchain.Hash
}

func (e RootMismatchError) Error() string {
	return fmt.Sprintf("snapshot declares root %s but its pairs produce %s", e.Want, e.Got)
}

// Export writes a snapshot of storage to w.
func Export(w io.Writer, storage *gtrie.Storage) error {
	var pairs []pair
	for _, kv := range storage.Pairs() {
		if strings.HasPrefix(string(kv.Key), gtrie.ChildStoragePrefix) {
			continue
		}
		pairs = append(pairs, pair{Key: kv.Key, Value: kv.Value})
	}
	for _, ck := range storage.ChildKeys() {
		for _, kv := range storage.ChildPairs(ck) {
			pairs = append(pairs, pair{ChildKey: ck, Key: kv.Key, Value: kv.Value})
		}
	}

	sw := snappy.NewBufferedWriter(w)

	if _, err := io.WriteString(sw, magic); err != nil {
		return fmt.Errorf("failed to write magic: %w", err)
	}

	if err := writeRecord(sw, header{Root: storage.Root(), NPairs: uint64(len(pairs))}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, p := range pairs {
		if err := writeRecord(sw, p); err != nil {
			return fmt.Errorf("failed to write pair %d: %w", i, err)
		}
	}

	if err := sw.Close(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	return nil
}

func writeRecord(w io.Writer, v any) error {
	b, err := scale.Marshal(v)
	if err != nil {
		return err
	}

	buf := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen64+len(b)), uint64(len(b)))
	buf = append(buf, b...)
	_, err = w.Write(buf)
	return err
}

// Import reads a snapshot written by [Export] and rebuilds the storage image.
// The whole of r must be consumed by the snapshot.
func Import(r io.Reader) (*gtrie.Storage, error) {
	br := bufio.NewReader(snappy.NewReader(r))

	m := make([]byte, len(magic))
	if _, err := io.ReadFull(br, m); err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if string(m) != magic {
		return nil, fmt.Errorf("not a snapshot: bad magic %x", m)
	}

	var h header
	if err := readRecord(br, &h); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var main []gchain.KeyValue
	var child []gchain.ChildStorageChanges
	for i := uint64(0); i < h.NPairs; i++ {
		var p pair
		if err := readRecord(br, &p); err != nil {
			return nil, fmt.Errorf("failed to read pair %d of %d: %w", i, h.NPairs, err)
		}

		kv := gchain.KeyValue{Key: p.Key, Value: p.Value}
		if kv.Value == nil {
			kv.Value = []byte{}
		}

		if len(p.ChildKey) == 0 {
			main = append(main, kv)
			continue
		}
		if n := len(child); n == 0 || !bytes.Equal(child[n-1].StorageKey, p.ChildKey) {
			child = append(child, gchain.ChildStorageChanges{StorageKey: p.ChildKey})
		}
		child[len(child)-1].Changes = append(child[len(child)-1].Changes, kv)
	}

	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, errors.New("trailing data after last pair")
		}
		return nil, fmt.Errorf("failed to read end of snapshot: %w", err)
	}

	storage, err := gtrie.NewFromPairs(main, child)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild storage: %w", err)
	}

	if got := storage.Root(); got != h.Root {
		return nil, RootMismatchError{Want: h.Root, Got: got}
	}

	return storage, nil
}

func readRecord(r *bufio.Reader, dst any) error {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return fmt.Errorf("failed to read record size: %w", err)
	}
	if n > maxRecordSize {
		return fmt.Errorf("record size %d exceeds maximum %d", n, maxRecordSize)
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return fmt.Errorf("failed to read record: %w", err)
	}

	return scale.Unmarshal(b, dst)
}
