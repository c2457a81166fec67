// JSON-RPC transport of the signature server. Collectors post JSON-RPC 2.0
// requests on a single route; every result is a sigserver response envelope.

package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/bridge-verifier/agreement"
	"github.com/TEENet-io/bridge-verifier/sigserver"
)

const (
	ROUTE_RPC     = "/force-bridge/sign-server/api/v1"
	ROUTE_METRICS = "/metrics"
	ROUTE_HEALTH  = "/health"

	METHOD_SIGN_CKB_TX   = "signCkbTx"
	METHOD_SIGN_ETH_TX   = "signEthTx"
	METHOD_SIGN_ADA_TX   = "signAdaTx"
	METHOD_PENDING_TX    = "pendingTx"
	METHOD_SERVER_STATUS = "serverStatus"

	shutdownTimeout = 5 * time.Second
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Handler is what the server dispatches to, *sigserver.SigServer in
// production.
type Handler interface {
	SignCkbTx(ctx context.Context, req *agreement.SignatureRequest) *sigserver.SigResponse
	SignEthTx(ctx context.Context, req *agreement.SignatureRequest) *sigserver.SigResponse
	SignAdaTx(ctx context.Context, req *agreement.SignatureRequest) *sigserver.SigResponse
	PendingTx(ctx context.Context, chain string) *sigserver.SigResponse
	Status(ctx context.Context) *sigserver.SigResponse
}

type Request struct {
	JsonRpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

type Response struct {
	JsonRpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type PendingTxParams struct {
	Chain string `json:"chain"`
}

type RpcServer struct {
	listenAddr string
	handler    Handler
}

func NewRpcServer(listenAddr string, handler Handler) *RpcServer {
	return &RpcServer{
		listenAddr: listenAddr,
		handler:    handler,
	}
}

// Hook up routes & handlers
func (s *RpcServer) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST(ROUTE_RPC, s.Rpc)
	router.GET(ROUTE_METRICS, gin.WrapH(promhttp.Handler()))
	router.GET(ROUTE_HEALTH, Health)

	return router
}

// Run serves until ctx is done, then shuts the listener down gracefully.
func (s *RpcServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("address", s.listenAddr).Info("rpc server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Rpc decodes one JSON-RPC call and dispatches it by method name.
func (s *RpcServer) Rpc(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, &Response{
			JsonRpc: "2.0",
			Id:      json.RawMessage("null"),
			Error:   &Error{Code: codeParseError, Message: err.Error()},
		})
		return
	}
	id := req.Id
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	resp := &Response{JsonRpc: "2.0", Id: id}

	if req.JsonRpc != "2.0" || req.Method == "" {
		resp.Error = &Error{Code: codeInvalidRequest, Message: "invalid request"}
		c.JSON(http.StatusOK, resp)
		return
	}

	result, err := s.dispatch(c.Request.Context(), req.Method, req.Params)
	if err != nil {
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			rpcErr = &Error{Code: codeInvalidParams, Message: err.Error()}
		}
		logger.WithFields(logger.Fields{
			"method": req.Method,
			"error":  rpcErr.Message,
		}).Debug("rejected rpc call")
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	c.JSON(http.StatusOK, resp)
}

func (s *RpcServer) dispatch(ctx context.Context, method string, params json.RawMessage) (*sigserver.SigResponse, error) {
	switch method {
	case METHOD_SIGN_CKB_TX, METHOD_SIGN_ETH_TX, METHOD_SIGN_ADA_TX:
		var sigReq agreement.SignatureRequest
		if err := decodeParams(params, &sigReq); err != nil {
			return nil, err
		}
		switch method {
		case METHOD_SIGN_CKB_TX:
			return s.handler.SignCkbTx(ctx, &sigReq), nil
		case METHOD_SIGN_ETH_TX:
			return s.handler.SignEthTx(ctx, &sigReq), nil
		}
		return s.handler.SignAdaTx(ctx, &sigReq), nil
	case METHOD_PENDING_TX:
		var p PendingTxParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return s.handler.PendingTx(ctx, p.Chain), nil
	case METHOD_SERVER_STATUS:
		return s.handler.Status(ctx), nil
	}
	return nil, &Error{Code: codeMethodNotFound, Message: "method not found: " + method}
}

// decodeParams accepts params as an object or as a one element array.
func decodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return &Error{Code: codeInvalidParams, Message: "missing params"}
	}
	if params[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(params, &arr); err != nil || len(arr) != 1 {
			return &Error{Code: codeInvalidParams, Message: "params must hold exactly one object"}
		}
		params = arr[0]
	}
	if err := json.Unmarshal(params, v); err != nil {
		return &Error{Code: codeInvalidParams, Message: err.Error()}
	}
	return nil
}
