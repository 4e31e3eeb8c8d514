package handler

import (
	"context"
	"time"

	"web3-balance/internal/worker/model"
	"web3-balance/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SessionApplier lifecycle.Hub
type SessionApplier interface {
	Apply(ev model.SessionEvent) error
}

type SessionHandler struct {
	logger *zap.Logger
	hub    SessionApplier
}

func NewSessionHandler(logger *zap.Logger, hub SessionApplier) *SessionHandler {
	return &SessionHandler{logger: logger, hub: hub}
}

func (h *SessionHandler) HandleSession(ctx context.Context, ev model.SessionEvent) error {
	if ev.Session.ID == "" {
		return nil
	}
	ctx, span := logger.StartSpan(ctx, "session", string(ev.Type),
		attribute.String("session.id", ev.Session.ID),
		attribute.Int64("chain.id", int64(ev.Session.ChainID)),
	)
	defer span.End()
	tl := logger.NewLoggerWithTrace(ctx, h.logger)

	start := time.Now()
	err := h.hub.Apply(ev)
	if err != nil {
		span.RecordError(err)
		tl.Warn("HandleSession failed", zap.String("session", ev.Session.ID), zap.String("type", string(ev.Type)), zap.Error(err))
		return err
	}
	tl.Debug("HandleSession done",
		zap.String("session", ev.Session.ID),
		zap.String("type", string(ev.Type)),
		zap.Int("tokens", len(ev.Session.Tokens)),
		zap.Float64("cost", time.Since(start).Seconds()),
	)
	return nil
}
