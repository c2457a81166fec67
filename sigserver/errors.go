package sigserver

import (
	"errors"
	"fmt"
)

type SigErrorCode int

const (
	CodeOk                   SigErrorCode = 0
	CodeInvalidParams        SigErrorCode = 1000
	CodeInvalidRecord        SigErrorCode = 1001
	CodeDuplicateSign        SigErrorCode = 1002
	CodeTxUnconfirmed        SigErrorCode = 1003
	CodeTxNotFound           SigErrorCode = 1004
	CodeTxCompleted          SigErrorCode = 1005
	CodeBlockSyncUncompleted SigErrorCode = 1006
	CodeInvalidCollector     SigErrorCode = 1007
	CodeUnknownError         SigErrorCode = 9999
)

var codeNames = map[SigErrorCode]string{
	CodeOk:                   "Ok",
	CodeInvalidParams:        "InvalidParams",
	CodeInvalidRecord:        "InvalidRecord",
	CodeDuplicateSign:        "DuplicateSign",
	CodeTxUnconfirmed:        "TxUnconfirmed",
	CodeTxNotFound:           "TxNotFound",
	CodeTxCompleted:          "TxCompleted",
	CodeBlockSyncUncompleted: "BlockSyncUncompleted",
	CodeInvalidCollector:     "InvalidCollector",
	CodeUnknownError:         "UnknownError",
}

// canonical messages, stable across versions
var codeMessages = map[SigErrorCode]string{
	CodeOk:                   "ok",
	CodeInvalidParams:        "invalid sig params",
	CodeInvalidRecord:        "invalid sig record",
	CodeDuplicateSign:        "duplicate signature request",
	CodeTxUnconfirmed:        "tx unconfirmed",
	CodeTxNotFound:           "tx not found",
	CodeTxCompleted:          "tx already completed",
	CodeBlockSyncUncompleted: "block sync uncompleted",
	CodeInvalidCollector:     "invalid collector",
	CodeUnknownError:         "unknown error",
}

func (c SigErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("SigErrorCode(%d)", int(c))
}

// SigError is the outcome of a signature request. It doubles as a Go error
// for the verification code paths.
type SigError struct {
	Code    SigErrorCode `json:"Code"`
	Message string       `json:"Message"`
}

// NewSigError builds a SigError carrying the canonical message of code.
func NewSigError(code SigErrorCode) *SigError {
	return &SigError{Code: code, Message: codeMessages[code]}
}

func sigErrorf(code SigErrorCode, format string, args ...interface{}) *SigError {
	return &SigError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *SigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SigError) IsOk() bool { return e.Code == CodeOk }

var SigErrorOk = NewSigError(CodeOk)

// toSigError maps any error to the taxonomy. Errors that are not SigErrors
// are infrastructure failures and become UnknownError; their cause is
// expected to be logged by the caller, not sent to the collector.
func toSigError(err error) *SigError {
	if err == nil {
		return SigErrorOk
	}
	var se *SigError
	if errors.As(err, &se) {
		return se
	}
	return NewSigError(CodeUnknownError)
}
