// Client is a small caller of a running signature server, used by the
// command line and tests.

package rpcserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/TEENet-io/bridge-verifier/agreement"
	"github.com/TEENet-io/bridge-verifier/sigserver"
)

type Client struct {
	url    string
	http   *http.Client
	nextId atomic.Int64
}

// NewClient talks to the server at baseUrl, e.g. "http://127.0.0.1:8090".
func NewClient(baseUrl string) *Client {
	return &Client{
		url:  baseUrl + ROUTE_RPC,
		http: http.DefaultClient,
	}
}

// Call posts one JSON-RPC request and decodes the envelope it returns.
func (cl *Client) Call(ctx context.Context, method string, params interface{}) (*RawSigResponse, error) {
	req := struct {
		JsonRpc string      `json:"jsonrpc"`
		Id      int64       `json:"id"`
		Method  string      `json:"method"`
		Params  interface{} `json:"params,omitempty"`
	}{"2.0", cl.nextId.Add(1), method, params}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := cl.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpc %s: http status %d", method, resp.StatusCode)
	}

	var out struct {
		Result *RawSigResponse `json:"result"`
		Error  *Error          `json:"error"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, out.Error
	}
	if out.Result == nil {
		return nil, fmt.Errorf("rpc %s: empty result", method)
	}
	return out.Result, nil
}

// RawSigResponse is the envelope with Data left undecoded.
type RawSigResponse struct {
	Error sigserver.SigError `json:"Error"`
	Data  json.RawMessage    `json:"Data,omitempty"`
}

func (cl *Client) SignCkbTx(ctx context.Context, req *agreement.SignatureRequest) (*RawSigResponse, error) {
	return cl.Call(ctx, METHOD_SIGN_CKB_TX, req)
}

func (cl *Client) SignEthTx(ctx context.Context, req *agreement.SignatureRequest) (*RawSigResponse, error) {
	return cl.Call(ctx, METHOD_SIGN_ETH_TX, req)
}

func (cl *Client) SignAdaTx(ctx context.Context, req *agreement.SignatureRequest) (*RawSigResponse, error) {
	return cl.Call(ctx, METHOD_SIGN_ADA_TX, req)
}

func (cl *Client) PendingTx(ctx context.Context, chain string) (*RawSigResponse, error) {
	return cl.Call(ctx, METHOD_PENDING_TX, &PendingTxParams{Chain: chain})
}

func (cl *Client) ServerStatus(ctx context.Context) (*RawSigResponse, error) {
	return cl.Call(ctx, METHOD_SERVER_STATUS, nil)
}
