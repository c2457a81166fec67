// Global agreement on the wire types exchanged with collectors.

package agreement

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type SigType string

const (
	SigTypeMint       SigType = "mint"
	SigTypeUnlock     SigType = "unlock"
	SigTypeCreateCell SigType = "create_cell"
)

const (
	ChainCkb = "ckb"
	ChainEth = "eth"
	ChainAda = "ada"
)

var ErrInvalidQuantity = errors.New("quantity must be a JSON string or integer")

// Quantity is an integer that collectors send either as a JSON number or as
// a decimal/hex string. It keeps the textual form.
type Quantity string

func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return ErrInvalidQuantity
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*q = Quantity(s)
		return nil
	}
	// plain non-negative integers only, whatever their size
	if bytes.ContainsAny(b, ".eE-+") {
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, b)
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return ErrInvalidQuantity
	}
	*q = Quantity(n.String())
	return nil
}

func (q Quantity) String() string { return string(q) }

// SignatureRequest is what a collector asks this node to co-sign. RawData is
// the 32-byte message to sign, Payload the chain specific evidence that
// lets the node rebuild and judge it.
type SignatureRequest struct {
	Chain            string          `json:"chain"`
	RequestAddress   string          `json:"requestAddress"`
	RawData          string          `json:"rawData"`
	CollectorSig     string          `json:"collectorSig,omitempty"`
	LastFailedTxHash string          `json:"lastFailedTxHash,omitempty"`
	Payload          json.RawMessage `json:"payload"`
}

// CkbMintRecord asks to mint the mirror of a cross chain lock on CKB.
type CkbMintRecord struct {
	Id                  string   `json:"id"`
	Chain               uint8    `json:"chain"`
	Asset               string   `json:"asset"`
	Amount              Quantity `json:"amount"`
	RecipientLockscript string   `json:"recipientLockscript"`
	SudtExtraData       string   `json:"sudtExtraData,omitempty"`
}

// CkbUnlockRecord asks to release a CKB native asset after its burn on a
// cross chain. Id is the burn id, "<burnTxHash>-<logIndex>" or the bare
// burn tx hash.
type CkbUnlockRecord struct {
	Id               string   `json:"id"`
	XChain           uint8    `json:"xchain"`
	AssetIdent       string   `json:"assetIdent"`
	Amount           Quantity `json:"amount"`
	RecipientAddress string   `json:"recipientAddress"`
	BurnTxHash       string   `json:"burnTxHash,omitempty"`
}

// IdTxHash is the burn tx hash part of Id.
func (r *CkbUnlockRecord) IdTxHash() string {
	if i := strings.IndexByte(r.Id, '-'); i >= 0 {
		return r.Id[:i]
	}
	return r.Id
}

// CreateAsset names one mirror asset whose bridge cell is created.
type CreateAsset struct {
	Chain uint8  `json:"chain"`
	Asset string `json:"asset"`
}

// EthUnlockRecord releases a locked ETH asset after its mirror burn on CKB.
type EthUnlockRecord struct {
	Token     string   `json:"token"`
	Recipient string   `json:"recipient"`
	Amount    Quantity `json:"amount"`
	CkbTxHash string   `json:"ckbTxHash"`
}

// AdaUnlockRecord releases ADA after its mirror burn on CKB.
type AdaUnlockRecord struct {
	Asset            string   `json:"asset"`
	Amount           Quantity `json:"amount"`
	RecipientAddress string   `json:"recipientAddress"`
	CkbTxHash        string   `json:"ckbTxHash"`
}

// EthMintRecord mints the mirror of a CKB native asset on ETH.
type EthMintRecord struct {
	LockId  string   `json:"lockId"`
	AssetId string   `json:"assetId"`
	Amount  Quantity `json:"amount"`
	To      string   `json:"to"`
}

// SafeTransaction is a Gnosis Safe transaction as proposed to the owners.
type SafeTransaction struct {
	To             string   `json:"to"`
	Value          Quantity `json:"value"`
	Data           string   `json:"data"`
	Operation      uint8    `json:"operation"`
	SafeTxGas      Quantity `json:"safeTxGas"`
	BaseGas        Quantity `json:"baseGas"`
	GasPrice       Quantity `json:"gasPrice"`
	GasToken       string   `json:"gasToken"`
	RefundReceiver string   `json:"refundReceiver"`
	Nonce          Quantity `json:"nonce"`
}

// SafeSignature is the owner signature format of the Safe service.
type SafeSignature struct {
	Signer string `json:"signer"`
	Data   string `json:"data"`
}
