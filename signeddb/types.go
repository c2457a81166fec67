package signeddb

import (
	"database/sql"
	"errors"
	"strings"
)

const outPointSeparator = ";"

var (
	ErrNoRecords      = errors.New("no signed records to save")
	ErrMixedRawData   = errors.New("signed records of one save must share rawData and pubKey")
	ErrEmptyRawData   = errors.New("empty rawData")
	ErrEmptyRefTxHash = errors.New("empty refTxHash")
)

// SignedRecord is persisted once per record of a signed request.
type SignedRecord struct {
	SigType   string
	Chain     string
	Amount    string
	Receiver  string
	Asset     string
	RefTxHash string
	// Nonce is only set for eth unlocks.
	Nonce          *uint64
	PubKey         string
	RawData        string
	Signature      string
	InputOutPoints []string
}

type sqlSigned struct {
	SigType        string
	Chain          string
	Amount         string
	Receiver       string
	Asset          string
	RefTxHash      string
	Nonce          sql.NullInt64
	PubKey         string
	RawData        string
	Signature      string
	InputOutPoints string
}

func (s *sqlSigned) encode(r *SignedRecord) (*sqlSigned, error) {
	if r.RawData == "" {
		return nil, ErrEmptyRawData
	}
	if r.RefTxHash == "" {
		return nil, ErrEmptyRefTxHash
	}
	s.SigType = r.SigType
	s.Chain = r.Chain
	s.Amount = r.Amount
	s.Receiver = r.Receiver
	s.Asset = r.Asset
	s.RefTxHash = strings.ToLower(r.RefTxHash)
	if r.Nonce != nil {
		s.Nonce = sql.NullInt64{Int64: int64(*r.Nonce), Valid: true}
	}
	s.PubKey = strings.ToLower(r.PubKey)
	s.RawData = strings.ToLower(r.RawData)
	s.Signature = r.Signature
	s.InputOutPoints = strings.Join(r.InputOutPoints, outPointSeparator)
	return s, nil
}

func (s *sqlSigned) decode() *SignedRecord {
	r := &SignedRecord{
		SigType:   s.SigType,
		Chain:     s.Chain,
		Amount:    s.Amount,
		Receiver:  s.Receiver,
		Asset:     s.Asset,
		RefTxHash: s.RefTxHash,
		PubKey:    s.PubKey,
		RawData:   s.RawData,
		Signature: s.Signature,
	}
	if s.Nonce.Valid {
		n := uint64(s.Nonce.Int64)
		r.Nonce = &n
	}
	if s.InputOutPoints != "" {
		r.InputOutPoints = strings.Split(s.InputOutPoints, outPointSeparator)
	}
	return r
}

func (s *sqlSigned) scanArgs() []interface{} {
	return []interface{}{
		&s.SigType, &s.Chain, &s.Amount, &s.Receiver, &s.Asset, &s.RefTxHash,
		&s.Nonce, &s.PubKey, &s.RawData, &s.Signature, &s.InputOutPoints,
	}
}

func (s *sqlSigned) execArgs() []interface{} {
	return []interface{}{
		s.SigType, s.Chain, s.Amount, s.Receiver, s.Asset, s.RefTxHash,
		s.Nonce, s.PubKey, s.RawData, s.Signature, s.InputOutPoints,
	}
}
