package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"web3-balance/internal/worker/lifecycle"
	"web3-balance/internal/worker/model"
	"web3-balance/pkg/logger"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const tracerName = "balance_api"

// BalanceGetter service.Aggregator
type BalanceGetter interface {
	GetBalances(ctx context.Context, chainID uint64, owner string, tokens []model.TokenRef) model.Aggregation
}

// SessionHub lifecycle.Hub
type SessionHub interface {
	Apply(ev model.SessionEvent) error
	Refetch(id string) error
	Snapshot(id string) (*model.Snapshot, lifecycle.State, bool)
}

type Server struct {
	logger     *zap.Logger
	aggregator BalanceGetter
	hub        SessionHub
	httpServer *http.Server
}

func NewServer(addr string, logger *zap.Logger, aggregator BalanceGetter, hub SessionHub) *Server {
	s := &Server{logger: logger, aggregator: aggregator, hub: hub}
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/balances", s.handleBalances)
	mux.HandleFunc("PUT /v1/sessions/{id}", s.handlePutSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /v1/sessions/{id}/refetch", s.handleRefetch)
	mux.HandleFunc("GET /v1/sessions/{id}/balances", s.handleSessionBalances)
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() {
	go func() {
		s.logger.Info("api server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server stopped", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /v1/balances?chainId=1&address=0x..&tokens=0xa0b8..:6,0xeeee..:18:native
func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	ctx, span := logger.StartSpanWithRequest(r, tracerName, "get_balances")
	defer span.End()

	q := r.URL.Query()
	chainID, err := strconv.ParseUint(q.Get("chainId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid chainId: %w", err))
		return
	}
	address := strings.TrimSpace(q.Get("address"))
	if address == "" {
		writeError(w, http.StatusBadRequest, errors.New("address is required"))
		return
	}
	tokens, err := ParseTokens(chainID, q.Get("tokens"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	agg := s.aggregator.GetBalances(ctx, chainID, address, tokens)
	logger.NewLoggerWithTrace(ctx, s.logger).Debug("balances served",
		zap.Uint64("chain_id", chainID), zap.String("address", address), zap.Int("tokens", len(tokens)))
	writeJSON(w, http.StatusOK, agg)
}

func (s *Server) handlePutSession(w http.ResponseWriter, r *http.Request) {
	_, span := logger.StartSpanWithRequest(r, tracerName, "put_session")
	defer span.End()

	var session model.Session
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&session); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid session body: %w", err))
		return
	}
	session.ID = r.PathValue("id")
	if err := session.NormalizeTokens(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ev := model.SessionEvent{Type: model.SessionUpdate, Session: session, EventTime: time.Now().UnixMilli()}
	if err := s.hub.Apply(ev); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	ev := model.SessionEvent{
		Type:      model.SessionDisconnect,
		Session:   model.Session{ID: r.PathValue("id")},
		EventTime: time.Now().UnixMilli(),
	}
	if err := s.hub.Apply(ev); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefetch(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.Refetch(r.PathValue("id")); err != nil {
		if errors.Is(err, lifecycle.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSessionBalances(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := s.hub.Snapshot(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, lifecycle.ErrSessionNotFound)
		return
	}
	// 加载中或空闲
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ParseTokens 解析 addr:decimals[:native]，多个用逗号分隔
func ParseTokens(chainID uint64, raw string) ([]model.TokenRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("tokens is required")
	}
	parts := strings.Split(raw, ",")
	tokens := make([]model.TokenRef, 0, len(parts))
	for _, part := range parts {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) < 2 || len(fields) > 3 || fields[0] == "" {
			return nil, fmt.Errorf("invalid token %q", part)
		}
		decimals, err := strconv.ParseUint(fields[1], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid decimals in %q: %w", part, err)
		}
		token := model.NewTokenRef(chainID, fields[0], uint8(decimals))
		if len(fields) == 3 {
			if fields[2] != "native" {
				return nil, fmt.Errorf("invalid token flag %q", fields[2])
			}
			token.IsNative = true
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
