package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"checkin/internal/core"
)

// CheckInStore is the storage surface the service needs.
type CheckInStore interface {
	UpsertCheckIn(ctx context.Context, userID int64, weekStart time.Time, answers map[int64]string) (core.CheckIn, error)
	Close() error
}

// EventPublisher publishes check-in recorded events for the export worker.
type EventPublisher interface {
	PublishCheckInRecorded(ctx context.Context, id, version int64) error
	Close() error
}

// CheckInService orchestrates check-in writes across SQLite and AMQP.
type CheckInService struct {
	store     CheckInStore
	publisher EventPublisher
}

func NewCheckInService(store CheckInStore, publisher EventPublisher) *CheckInService {
	return &CheckInService{
		store:     store,
		publisher: publisher,
	}
}

// Record validates submitted answers against the question catalog, writes
// the check-in, and publishes an export event. Blank answers are dropped;
// the export publish is best-effort and never fails the request.
func (s *CheckInService) Record(ctx context.Context, userID int64, weekStart time.Time, questions []core.Question, submitted map[int64]string) (core.CheckIn, error) {
	byID := make(map[int64]core.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	answers := make(map[int64]string, len(submitted))
	for questionID, raw := range submitted {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		q, ok := byID[questionID]
		if !ok {
			return core.CheckIn{}, fmt.Errorf("unknown question %d", questionID)
		}
		if err := core.ValidateAnswer(q.Kind, value); err != nil {
			return core.CheckIn{}, fmt.Errorf("answer for question %d: %w", questionID, err)
		}
		answers[questionID] = value
	}

	checkin, err := s.store.UpsertCheckIn(ctx, userID, weekStart, answers)
	if err != nil {
		return core.CheckIn{}, fmt.Errorf("save check-in: %w", err)
	}

	if err := s.publishRecorded(ctx, checkin.ID, checkin.Version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish check-in recorded message",
			"id", checkin.ID, "error", err)
		// Don't fail the request, the check-in is saved locally
	}

	return checkin, nil
}

func (s *CheckInService) publishRecorded(ctx context.Context, id, version int64) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping export message")
		return nil
	}
	return s.publisher.PublishCheckInRecorded(ctx, id, version)
}

// Close closes both storage and AMQP connections
func (s *CheckInService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close service: %v", errs)
	}
	return nil
}
