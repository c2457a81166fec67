package multisig

import "errors"

var (
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrInvalidMessage    = errors.New("message must be 32 bytes")
	ErrInvalidSignature  = errors.New("invalid recoverable signature")
)

// Signer signs 32-byte messages with one local key: recoverable secp256k1
// signatures for ckb and eth, vkey witnesses for cardano.
type Signer interface {
	Sign(message []byte) ([]byte, error)
	// PubKey identifies the key in signed records.
	PubKey() string
}
