package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vaultix/host"
	"vaultix/native/escrow"
	"vaultix/observability/logging"
	"vaultix/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	shutdownTimeout = 10 * time.Second
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id,omitempty"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handlerFunc runs one method. auth is nil for read-only methods.
type handlerFunc func(ctx context.Context, params json.RawMessage, auth escrow.AuthProvider) (interface{}, *modules.ModuleError)

type method struct {
	mutating bool
	call     handlerFunc
}

// Options configures the RPC server. Network is bound into every proof
// digest, so signatures for one network are rejected by another.
type Options struct {
	Network   string
	RateLimit RateLimit
	Logger    *slog.Logger
}

// Server exposes the runtime as JSON-RPC 2.0 over HTTP.
type Server struct {
	network string
	auth    *modules.AuthModule
	escrow  *modules.EscrowModule
	bank    *modules.BankModule
	limiter *RateLimiter
	logger  *slog.Logger
	methods map[string]method
	router  chi.Router
}

func NewServer(rt *host.Runtime, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		network: opts.Network,
		auth:    modules.NewAuthModule(rt),
		escrow:  modules.NewEscrowModule(rt),
		bank:    modules.NewBankModule(rt),
		limiter: NewRateLimiter(opts.RateLimit),
		logger:  logger,
	}
	s.methods = s.registerMethods()
	s.router = s.routes()
	return s
}

func (s *Server) registerMethods() map[string]method {
	readOnly := func(fn func(context.Context, json.RawMessage) (interface{}, *modules.ModuleError)) method {
		return method{call: func(ctx context.Context, raw json.RawMessage, _ escrow.AuthProvider) (interface{}, *modules.ModuleError) {
			return fn(ctx, raw)
		}}
	}
	mutating := func(fn handlerFunc) method { return method{mutating: true, call: fn} }

	return map[string]method{
		"escrow_initialize": mutating(func(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (interface{}, *modules.ModuleError) {
			return s.escrow.Initialize(ctx, raw, auth)
		}),
		"escrow_updateFee": mutating(func(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (interface{}, *modules.ModuleError) {
			return s.escrow.UpdateFee(ctx, raw, auth)
		}),
		"escrow_create": mutating(func(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (interface{}, *modules.ModuleError) {
			return s.escrow.Create(ctx, raw, auth)
		}),
		"escrow_releaseMilestone": mutating(func(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (interface{}, *modules.ModuleError) {
			return s.escrow.ReleaseMilestone(ctx, raw, auth)
		}),
		"escrow_confirmDelivery": mutating(func(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (interface{}, *modules.ModuleError) {
			return s.escrow.ConfirmDelivery(ctx, raw, auth)
		}),
		"escrow_cancel": mutating(func(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (interface{}, *modules.ModuleError) {
			return s.escrow.Cancel(ctx, raw, auth)
		}),
		"escrow_complete": mutating(func(ctx context.Context, raw json.RawMessage, auth escrow.AuthProvider) (interface{}, *modules.ModuleError) {
			return s.escrow.Complete(ctx, raw, auth)
		}),
		"escrow_getConfig": readOnly(func(ctx context.Context, _ json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.escrow.GetConfig(ctx)
		}),
		"escrow_get": readOnly(func(ctx context.Context, raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.escrow.Get(ctx, raw)
		}),
		"escrow_getState": readOnly(func(ctx context.Context, raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.escrow.GetState(ctx, raw)
		}),
		"escrow_listEvents": readOnly(func(ctx context.Context, raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.escrow.ListEvents(ctx, raw)
		}),
		"auth_nonce": readOnly(func(ctx context.Context, raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.auth.Nonce(ctx, raw)
		}),
		"bank_balance": readOnly(func(ctx context.Context, raw json.RawMessage) (interface{}, *modules.ModuleError) {
			return s.bank.Balance(ctx, raw)
		}),
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.With(s.limiter.Middleware).Post("/rpc", s.handle)
	return r
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting JSON-RPC server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("rpc: shutdown: %w", err)
	}
	return nil
}

type requestIDKey struct{}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// handle decodes a JSON-RPC request and routes it to its method.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	id := responseID(req.ID)
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, id, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, id, codeInvalidRequest, "method required", nil)
		return
	}
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, id, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}

	var params json.RawMessage
	if len(req.Params) > 0 {
		params = req.Params[0]
	}
	var auth escrow.AuthProvider
	if m.mutating {
		proofs, rpcErr := s.decodeProofs(req)
		if rpcErr != nil {
			writeError(w, http.StatusUnauthorized, id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
		auth = proofs
	}

	result, modErr := m.call(r.Context(), params, auth)
	if modErr != nil {
		s.logger.Warn("rpc call failed",
			"method", req.Method,
			"requestId", requestIDFrom(r.Context()),
			"error", modErr.Message)
		writeError(w, modErr.HTTPStatus, id, modErr.Code, modErr.Message, modErr.Data)
		return
	}
	writeResult(w, id, result)
}

// ProofParam is one entry of the optional second positional parameter: a hex
// signature over the call digest for the signer's current nonce.
type ProofParam struct {
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

// decodeProofs reads the proofs of a mutating call. They sign the network,
// the method, the nonce and the exact bytes of the first parameter.
func (s *Server) decodeProofs(req *RPCRequest) (escrow.AuthProvider, *RPCError) {
	if len(req.Params) < 2 {
		return host.NewProofSet(), nil
	}
	var encoded []ProofParam
	if err := json.Unmarshal(req.Params[1], &encoded); err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "proofs must be an array of {nonce, signature} objects", Data: err.Error()}
	}
	sigs := make([]host.Signature, 0, len(encoded))
	for _, item := range encoded {
		s.logger.Debug("rpc proof received", "method", req.Method, "nonce", item.Nonce, logging.MaskField("proof", item.Signature))
		sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(item.Signature), "0x"))
		if err != nil {
			return nil, &RPCError{Code: codeUnauthorized, Message: "invalid proof encoding", Data: err.Error()}
		}
		sigs = append(sigs, host.Signature{Nonce: item.Nonce, Sig: sig})
	}
	proofs, err := host.ProofsFromSignatures(s.network, req.Method, req.Params[0], sigs)
	if err != nil {
		return nil, &RPCError{Code: codeUnauthorized, Message: "invalid proof", Data: err.Error()}
	}
	return proofs, nil
}

func responseID(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
