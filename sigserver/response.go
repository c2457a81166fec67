package sigserver

// SigResponse is the envelope of every sign server result.
type SigResponse struct {
	Error SigError    `json:"Error"`
	Data  interface{} `json:"Data,omitempty"`
}

func FromData(data interface{}) *SigResponse {
	return &SigResponse{Error: *SigErrorOk, Data: data}
}

func FromSigError(e *SigError) *SigResponse {
	return &SigResponse{Error: *e}
}

func (r *SigResponse) Ok() bool { return r.Error.IsOk() }
