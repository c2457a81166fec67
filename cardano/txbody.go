package cardano

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// transaction body map keys
const (
	keyInputs  = 0
	keyOutputs = 1
	keyFee     = 2
	keyTTL     = 3
)

var ErrInvalidTxBody = errors.New("invalid cardano transaction body")

type TxInput struct {
	_     struct{} `cbor:",toarray"`
	TxId  []byte
	Index uint64
}

// TxBody is the part of a transaction body the signer judges. Raw keeps the
// exact bytes the tx hash is taken over.
type TxBody struct {
	Raw     []byte
	Inputs  []TxInput
	Outputs []cbor.RawMessage
	Fee     uint64
	// TTL is the last slot the transaction is valid in; nil when unbounded.
	TTL *uint64
}

func DecodeTxBody(raw []byte) (*TxBody, error) {
	var fields map[uint64]cbor.RawMessage
	if err := cbor.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTxBody, err)
	}

	body := &TxBody{Raw: append([]byte(nil), raw...)}
	for _, f := range []struct {
		key uint64
		out interface{}
	}{
		{keyInputs, &body.Inputs},
		{keyOutputs, &body.Outputs},
		{keyFee, &body.Fee},
	} {
		v, ok := fields[f.key]
		if !ok {
			return nil, fmt.Errorf("%w: missing field %d", ErrInvalidTxBody, f.key)
		}
		if err := cbor.Unmarshal(v, f.out); err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidTxBody, f.key, err)
		}
	}
	if len(body.Inputs) == 0 {
		return nil, fmt.Errorf("%w: no inputs", ErrInvalidTxBody)
	}
	for _, in := range body.Inputs {
		if len(in.TxId) != 32 {
			return nil, fmt.Errorf("%w: input tx id of %d bytes", ErrInvalidTxBody, len(in.TxId))
		}
	}

	if v, ok := fields[keyTTL]; ok {
		var ttl uint64
		if err := cbor.Unmarshal(v, &ttl); err != nil {
			return nil, fmt.Errorf("%w: ttl: %v", ErrInvalidTxBody, err)
		}
		body.TTL = &ttl
	}
	return body, nil
}

func (b *TxBody) Hash() [32]byte {
	return Blake2b256(b.Raw)
}

// HashBech32 is the tx hash with the "txhash" prefix. Signed records are
// keyed by it since a body is too large to serve as key.
func (b *TxBody) HashBech32() (string, error) {
	h := b.Hash()
	return EncodeBech32(HrpTxHash, h[:])
}

// VKeyWitness is the [vkey, signature] pair added to the witness set.
type VKeyWitness struct {
	_         struct{} `cbor:",toarray"`
	VKey      []byte
	Signature []byte
}

func (w *VKeyWitness) Bytes() ([]byte, error) {
	return cbor.Marshal(w)
}

func DecodeVKeyWitness(b []byte) (*VKeyWitness, error) {
	var w VKeyWitness
	if err := cbor.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
