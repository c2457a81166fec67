package state

import (
	"strings"

	"github.com/TEENet-io/bridge-verifier/common"
	"github.com/holiman/uint256"
)

type sqlLock struct {
	Id            string
	Chain         string
	Asset         string
	Amount        string
	BridgeFee     string
	Sender        string
	Recipient     string
	BlockNumber   uint64
	ConfirmStatus string
}

func amountText(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func (s *sqlLock) encode(r *LockRecord) (*sqlLock, error) {
	if r == nil {
		return nil, ErrNilRecord
	}
	if r.Id == "" {
		return nil, ErrEmptyId
	}
	if r.Amount == nil {
		return nil, ErrNilAmount
	}
	s.Id = strings.ToLower(r.Id)
	s.Chain = r.Chain
	s.Asset = r.Asset
	s.Amount = r.Amount.Dec()
	s.BridgeFee = amountText(r.BridgeFee)
	s.Sender = r.Sender
	s.Recipient = r.Recipient
	s.BlockNumber = r.BlockNumber
	s.ConfirmStatus = string(r.ConfirmStatus)
	return s, nil
}

func (s *sqlLock) decode() (*LockRecord, error) {
	amount, err := common.ParseAmount(s.Amount)
	if err != nil {
		return nil, err
	}
	fee, err := common.ParseAmount(s.BridgeFee)
	if err != nil {
		return nil, err
	}
	return &LockRecord{
		Id:            s.Id,
		Chain:         s.Chain,
		Asset:         s.Asset,
		Amount:        amount,
		BridgeFee:     fee,
		Sender:        s.Sender,
		Recipient:     s.Recipient,
		BlockNumber:   s.BlockNumber,
		ConfirmStatus: ConfirmStatus(s.ConfirmStatus),
	}, nil
}

type sqlBurn struct {
	sqlLock
	XChain string
}

func (s *sqlBurn) encode(r *BurnRecord) (*sqlBurn, error) {
	if r == nil {
		return nil, ErrNilRecord
	}
	if _, err := s.sqlLock.encode(&LockRecord{
		Id:            r.Id,
		Chain:         r.Chain,
		Asset:         r.Asset,
		Amount:        r.Amount,
		BridgeFee:     r.BridgeFee,
		Sender:        r.Sender,
		Recipient:     r.Recipient,
		BlockNumber:   r.BlockNumber,
		ConfirmStatus: r.ConfirmStatus,
	}); err != nil {
		return nil, err
	}
	s.XChain = r.XChain
	return s, nil
}

func (s *sqlBurn) decode() (*BurnRecord, error) {
	l, err := s.sqlLock.decode()
	if err != nil {
		return nil, err
	}
	return &BurnRecord{
		Id:            l.Id,
		Chain:         l.Chain,
		XChain:        s.XChain,
		Asset:         l.Asset,
		Amount:        l.Amount,
		BridgeFee:     l.BridgeFee,
		Sender:        l.Sender,
		Recipient:     l.Recipient,
		BlockNumber:   l.BlockNumber,
		ConfirmStatus: l.ConfirmStatus,
	}, nil
}

// sqlFinal backs both mint_record and unlock_record.
type sqlFinal struct {
	Id        string
	Chain     string
	Asset     string
	Amount    string
	Recipient string
	TxHash    string
}

func (s *sqlFinal) decode() (*MintRecord, error) {
	amount, err := common.ParseAmount(s.Amount)
	if err != nil {
		return nil, err
	}
	return &MintRecord{
		Id:        s.Id,
		Chain:     s.Chain,
		Asset:     s.Asset,
		Amount:    amount,
		Recipient: s.Recipient,
		TxHash:    s.TxHash,
	}, nil
}
