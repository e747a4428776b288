package types

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

type (
	// RawCBOR is a raw encoded CBOR value, used for deferred decoding of tx attributes.
	RawCBOR = cbor.RawMessage

	cborHandler struct {
		encMode cbor.EncMode
	}
)

// Cbor is the codec used for everything that goes into the ledger or over the wire.
var Cbor = newCborHandler()

func newCborHandler() cborHandler {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return cborHandler{encMode: enc}
}

func (c cborHandler) Marshal(v any) ([]byte, error) {
	return c.encMode.Marshal(v)
}

func (c cborHandler) Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

func (c cborHandler) GetEncoder(w io.Writer) (*cbor.Encoder, error) {
	return c.encMode.NewEncoder(w), nil
}

func (c cborHandler) Encode(w io.Writer, v any) error {
	enc, err := c.GetEncoder(w)
	if err != nil {
		return err
	}
	return enc.Encode(v)
}

func (c cborHandler) GetDecoder(r io.Reader) *cbor.Decoder {
	return cbor.NewDecoder(r)
}
