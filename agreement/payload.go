package agreement

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/TEENet-io/bridge-verifier/ckb"
)

var (
	ErrUnsupportedPayload = errors.New("unsupported payload")
	ErrMalformedPayload   = errors.New("malformed payload")
)

// Payload is the closed set of request payloads. Each variant lists the ids
// of the source events it refers to.
type Payload interface {
	SigType() SigType
	RefIds() []string
}

type CkbMintPayload struct {
	MintRecords []CkbMintRecord          `json:"mintRecords"`
	TxSkeleton  *ckb.TransactionSkeleton `json:"txSkeleton"`
}

func (p *CkbMintPayload) SigType() SigType { return SigTypeMint }

func (p *CkbMintPayload) RefIds() []string {
	ids := make([]string, len(p.MintRecords))
	for i, r := range p.MintRecords {
		ids[i] = strings.ToLower(r.Id)
	}
	return ids
}

type CkbCreateCellPayload struct {
	CreateAssets []CreateAsset            `json:"createAssets"`
	TxSkeleton   *ckb.TransactionSkeleton `json:"txSkeleton"`
}

func (p *CkbCreateCellPayload) SigType() SigType { return SigTypeCreateCell }

// RefIds is empty: creating bridge cells consumes no source event.
func (p *CkbCreateCellPayload) RefIds() []string { return nil }

type CkbUnlockPayload struct {
	UnlockRecords []CkbUnlockRecord        `json:"unlockRecords"`
	TxSkeleton    *ckb.TransactionSkeleton `json:"txSkeleton"`
}

func (p *CkbUnlockPayload) SigType() SigType { return SigTypeUnlock }

func (p *CkbUnlockPayload) RefIds() []string {
	ids := make([]string, len(p.UnlockRecords))
	for i, r := range p.UnlockRecords {
		ids[i] = strings.ToLower(r.Id)
	}
	return ids
}

type EthUnlockPayload struct {
	DomainSeparator string            `json:"domainSeparator"`
	TypeHash        string            `json:"typeHash"`
	UnlockRecords   []EthUnlockRecord `json:"unlockRecords"`
	Nonce           uint64            `json:"nonce"`
}

func (p *EthUnlockPayload) SigType() SigType { return SigTypeUnlock }

func (p *EthUnlockPayload) RefIds() []string {
	ids := make([]string, len(p.UnlockRecords))
	for i, r := range p.UnlockRecords {
		ids[i] = strings.ToLower(r.CkbTxHash)
	}
	return ids
}

type EthMintPayload struct {
	MintRecords []EthMintRecord  `json:"mintRecords"`
	Tx          *SafeTransaction `json:"tx"`
}

func (p *EthMintPayload) SigType() SigType { return SigTypeMint }

func (p *EthMintPayload) RefIds() []string {
	ids := make([]string, len(p.MintRecords))
	for i, r := range p.MintRecords {
		ids[i] = strings.ToLower(r.LockId)
	}
	return ids
}

// AdaUnlockPayload comes with the CBOR transaction body as rawData.
type AdaUnlockPayload struct {
	UnlockRecords []AdaUnlockRecord `json:"unlockRecords"`
}

func (p *AdaUnlockPayload) SigType() SigType { return SigTypeUnlock }

func (p *AdaUnlockPayload) RefIds() []string {
	ids := make([]string, len(p.UnlockRecords))
	for i, r := range p.UnlockRecords {
		ids[i] = strings.ToLower(r.CkbTxHash)
	}
	return ids
}

type payloadHeader struct {
	SigType SigType `json:"sigType"`
}

// DecodePayload picks the payload variant from chain and the sigType tag.
// ErrUnsupportedPayload is returned for any other combination.
func DecodePayload(chain string, raw json.RawMessage) (Payload, error) {
	var hdr payloadHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var p Payload
	switch {
	case chain == ChainCkb && hdr.SigType == SigTypeMint:
		p = &CkbMintPayload{}
	case chain == ChainCkb && hdr.SigType == SigTypeCreateCell:
		p = &CkbCreateCellPayload{}
	case chain == ChainCkb && hdr.SigType == SigTypeUnlock:
		p = &CkbUnlockPayload{}
	case chain == ChainEth && hdr.SigType == SigTypeUnlock:
		p = &EthUnlockPayload{}
	case chain == ChainEth && hdr.SigType == SigTypeMint:
		p = &EthMintPayload{}
	case chain == ChainAda && hdr.SigType == SigTypeUnlock:
		p = &AdaUnlockPayload{}
	default:
		return nil, fmt.Errorf("%w: chain %q sigType %q", ErrUnsupportedPayload, chain, hdr.SigType)
	}

	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p, nil
}
