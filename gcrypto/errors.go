package gcrypto

import (
	"errors"
	"fmt"
)

var ErrInvalidSignature = errors.New("signature could not be verified")

// InvalidPubKeyError is returned when decoding public key bytes
// of the wrong length for the key type.
type InvalidPubKeyError struct {
	TypeName string
	Want     int
	Got      int
}

func (e InvalidPubKeyError) Error() string {
	return fmt.Sprintf("invalid %s public key: want %d bytes, got %d", e.TypeName, e.Want, e.Got)
}
