package funnel

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/adapter"
	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/notify"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// ClaimStore records one-time deliveries.
type ClaimStore interface {
	ClaimNotification(ctx context.Context, kind, key string) (bool, error)
	ReleaseNotification(ctx context.Context, kind, key string) error
}

// TakehomeHook sends the take-home assignment when a candidate enters takehome_assigned, at most
// once per (candidate, job).
type TakehomeHook struct {
	claims     ClaimStore
	dispatcher notify.Dispatcher
	timeout    time.Duration
	logger     *zap.Logger
}

// DefaultSendTimeout bounds one take-home delivery.
const DefaultSendTimeout = 30 * time.Second

// NewTakehomeHook creates a TakehomeHook. A zero timeout uses DefaultSendTimeout.
func NewTakehomeHook(claims ClaimStore, dispatcher notify.Dispatcher, timeout time.Duration, logger *zap.Logger) *TakehomeHook {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &TakehomeHook{claims: claims, dispatcher: dispatcher, timeout: timeout, logger: logging.WithFields(logger)}
}

// Name implements Hook.
func (h *TakehomeHook) Name() string { return "takehome" }

// OnStageChange implements Hook.
func (h *TakehomeHook) OnStageChange(ctx context.Context, c Change) error {
	log := h.logger.With(logging.JobID(c.Job.ID), logging.CandidateID(c.Candidate.ID))

	switch c.To {
	case types.StageTakehomeAssigned:
		return h.assign(ctx, c, log)
	case types.StageInterview:
		if c.From == types.StageTakehomeAssigned {
			log.Info("candidate advanced to interview after takehome", zap.String("handle", c.Candidate.Handle))
		}
	}
	return nil
}

func (h *TakehomeHook) assign(ctx context.Context, c Change, log *zap.Logger) error {
	key := c.Candidate.ID.String() + ":" + c.Job.ID.String()
	claimed, err := h.claims.ClaimNotification(ctx, notify.KindTakehome, key)
	if err != nil {
		return fmt.Errorf("failed to claim takehome notification: %w", err)
	}
	if !claimed {
		log.Debug("takehome already sent")
		return nil
	}

	msg, err := notify.Takehome(c.Candidate, c.Job)
	if err == nil {
		_, err = adapter.Call(ctx, "send takehome", h.timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, h.dispatcher.Send(ctx, msg)
		})
	}
	if err != nil {
		if relErr := h.claims.ReleaseNotification(ctx, notify.KindTakehome, key); relErr != nil {
			log.Warn("failed to release takehome claim", zap.Error(relErr))
		}
		return err
	}
	log.Info("takehome assigned", zap.String("to", msg.To))
	return nil
}
