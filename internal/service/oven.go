package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	bridge "tovala_bridge"
	"tovala_bridge/internal/logger"
	"tovala_bridge/internal/repository"
)

// Event types recorded in the local log.
const (
	EventTimerFinished = "TIMER_FINISHED"
	EventCookStart     = "COOK_START"
	EventCookCancel    = "COOK_CANCEL"
	EventError         = "ERROR"
)

const defaultHistoryLimit = 10

// ovenCommander is the slice of the upstream client the control service needs.
type ovenCommander interface {
	StartCooking(ctx context.Context, ovenID, barcode string) error
	CancelCook(ctx context.Context, ovenID string) error
	CookingHistory(ctx context.Context, ovenID string, limit int) []bridge.CookRecord
}

// refresher triggers a poll after a successful command so the snapshot
// reflects the new cooking state quickly.
type refresher interface {
	RequestRefresh()
}

// OvenControlService passes user-initiated commands through to the upstream
// API and records them in the event log. Commands fail loudly; only the audit
// logging is best-effort.
type OvenControlService struct {
	client    ovenCommander
	eventRepo repository.EventRepo
	refresh   refresher
	log       *logger.Logger
	ovenID    string
	recipes   []bridge.Recipe
}

func NewOvenControlService(client ovenCommander, eventRepo repository.EventRepo, refresh refresher, log *logger.Logger, ovenID string, recipes []bridge.Recipe) *OvenControlService {
	return &OvenControlService{
		client:    client,
		eventRepo: eventRepo,
		refresh:   refresh,
		log:       log,
		ovenID:    ovenID,
		recipes:   recipes,
	}
}

// StartCook starts cooking the given barcode.
func (s *OvenControlService) StartCook(ctx context.Context, barcode string) error {
	if err := s.client.StartCooking(ctx, s.ovenID, barcode); err != nil {
		return err
	}
	s.appendEvent(ctx, EventCookStart, "Cook started", map[string]any{"barcode": barcode})
	if s.refresh != nil {
		s.refresh.RequestRefresh()
	}
	return nil
}

// StartRecipe resolves a catalog recipe by title and starts it.
func (s *OvenControlService) StartRecipe(ctx context.Context, title string) error {
	for _, r := range s.recipes {
		if r.Title == title {
			return s.StartCook(ctx, r.Barcode)
		}
	}
	return fmt.Errorf("unknown recipe %q", title)
}

// CancelCook cancels the current cooking session.
func (s *OvenControlService) CancelCook(ctx context.Context) error {
	if err := s.client.CancelCook(ctx, s.ovenID); err != nil {
		return err
	}
	s.appendEvent(ctx, EventCookCancel, "Cook canceled", nil)
	if s.refresh != nil {
		s.refresh.RequestRefresh()
	}
	return nil
}

// History returns the recent cook records, most recent first. Best-effort:
// empty on any upstream failure.
func (s *OvenControlService) History(ctx context.Context, limit int) []bridge.CookRecord {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.client.CookingHistory(ctx, s.ovenID, limit)
}

// Recipes returns the startup-fetched catalog. The catalog is immutable for
// the process lifetime; callers get a copy.
func (s *OvenControlService) Recipes() []bridge.Recipe {
	out := make([]bridge.Recipe, len(s.recipes))
	copy(out, s.recipes)
	return out
}

func (s *OvenControlService) appendEvent(ctx context.Context, typ, desc string, meta map[string]any) {
	err := s.eventRepo.Append(ctx, bridge.OvenEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
	if err != nil && s.log != nil {
		s.log.Warnw("event append failed", "type", typ, "err", err)
	}
}
