package bytecode

import (
	"fmt"

	"github.com/chain/txvm/errors"
	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalListing serializes a Listing to CBOR bytes so tools can consume a
// disassembly without parsing its text form.
func MarshalListing(l *Listing) ([]byte, error) {
	data, err := cborEncMode.Marshal(l)
	if err != nil {
		return nil, errors.Wrap(err, "marshal listing")
	}
	return data, nil
}

// UnmarshalListing deserializes a Listing from CBOR bytes.
func UnmarshalListing(data []byte) (*Listing, error) {
	var l Listing
	if err := cbor.Unmarshal(data, &l); err != nil {
		return nil, errors.Wrap(err, "unmarshal listing")
	}
	return &l, nil
}
