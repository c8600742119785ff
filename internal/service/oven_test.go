package service

import (
	"context"
	"errors"
	"testing"

	bridge "tovala_bridge"
	"tovala_bridge/internal/logger"
)

// stubCommander records upstream command calls.
type stubCommander struct {
	startCalls  []string
	cancelCalls int
	history     []bridge.CookRecord
	histLimit   int
	err         error
}

func (s *stubCommander) StartCooking(ctx context.Context, ovenID, barcode string) error {
	s.startCalls = append(s.startCalls, barcode)
	return s.err
}

func (s *stubCommander) CancelCook(ctx context.Context, ovenID string) error {
	s.cancelCalls++
	return s.err
}

func (s *stubCommander) CookingHistory(ctx context.Context, ovenID string, limit int) []bridge.CookRecord {
	s.histLimit = limit
	return s.history
}

type stubRefresher struct {
	calls int
}

func (s *stubRefresher) RequestRefresh() { s.calls++ }

func newControlService(cmd *stubCommander, repo *fakeEventRepo, ref *stubRefresher, recipes []bridge.Recipe) *OvenControlService {
	return NewOvenControlService(cmd, repo, ref, logger.Get(logger.ErrorLevel), "oven-1", recipes)
}

func TestOvenControl_StartCook_RecordsEventAndRefreshes(t *testing.T) {
	cmd := &stubCommander{}
	repo := &fakeEventRepo{}
	ref := &stubRefresher{}
	svc := newControlService(cmd, repo, ref, nil)

	if err := svc.StartCook(context.Background(), "133A254|463|5E34BF80"); err != nil {
		t.Fatalf("StartCook returned error: %v", err)
	}
	if len(cmd.startCalls) != 1 || cmd.startCalls[0] != "133A254|463|5E34BF80" {
		t.Fatalf("unexpected upstream calls: %v", cmd.startCalls)
	}
	if len(repo.appended) != 1 {
		t.Fatalf("expected 1 event, got %d", len(repo.appended))
	}
	ev := repo.appended[0]
	if ev.Type != EventCookStart {
		t.Errorf("expected %s event, got %s", EventCookStart, ev.Type)
	}
	if ev.EventID == "" || ev.OccurredAt.IsZero() {
		t.Errorf("event id/timestamp not populated: %+v", ev)
	}
	if ref.calls != 1 {
		t.Errorf("expected 1 refresh request, got %d", ref.calls)
	}
}

func TestOvenControl_StartCook_UpstreamFailureSkipsEvent(t *testing.T) {
	cmd := &stubCommander{err: errors.New("oven offline")}
	repo := &fakeEventRepo{}
	ref := &stubRefresher{}
	svc := newControlService(cmd, repo, ref, nil)

	if err := svc.StartCook(context.Background(), "x|1|y"); err == nil {
		t.Fatalf("expected upstream error, got nil")
	}
	if len(repo.appended) != 0 {
		t.Fatalf("no event should be recorded on failure, got %d", len(repo.appended))
	}
	if ref.calls != 0 {
		t.Fatalf("no refresh should be requested on failure, got %d", ref.calls)
	}
}

func TestOvenControl_StartRecipe(t *testing.T) {
	recipes := []bridge.Recipe{
		{Title: "Salmon", Barcode: "133A254|463|5E34BF80"},
		{Title: "Chicken", Barcode: "133A254|464|5E34BF81"},
	}
	cmd := &stubCommander{}
	svc := newControlService(cmd, &fakeEventRepo{}, &stubRefresher{}, recipes)

	if err := svc.StartRecipe(context.Background(), "Chicken"); err != nil {
		t.Fatalf("StartRecipe returned error: %v", err)
	}
	if len(cmd.startCalls) != 1 || cmd.startCalls[0] != "133A254|464|5E34BF81" {
		t.Fatalf("expected Chicken barcode to be started, got %v", cmd.startCalls)
	}

	if err := svc.StartRecipe(context.Background(), "Pizza"); err == nil {
		t.Fatalf("expected error for unknown recipe title")
	}
}

func TestOvenControl_CancelCook_RecordsEvent(t *testing.T) {
	cmd := &stubCommander{}
	repo := &fakeEventRepo{}
	ref := &stubRefresher{}
	svc := newControlService(cmd, repo, ref, nil)

	if err := svc.CancelCook(context.Background()); err != nil {
		t.Fatalf("CancelCook returned error: %v", err)
	}
	if cmd.cancelCalls != 1 {
		t.Fatalf("expected 1 cancel call, got %d", cmd.cancelCalls)
	}
	if len(repo.appended) != 1 || repo.appended[0].Type != EventCookCancel {
		t.Fatalf("expected %s event, got %+v", EventCookCancel, repo.appended)
	}
	if ref.calls != 1 {
		t.Fatalf("expected 1 refresh request, got %d", ref.calls)
	}
}

func TestOvenControl_History_DefaultLimit(t *testing.T) {
	cmd := &stubCommander{history: []bridge.CookRecord{{Barcode: "a|1|b"}}}
	svc := newControlService(cmd, &fakeEventRepo{}, &stubRefresher{}, nil)

	got := svc.History(context.Background(), 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if cmd.histLimit != defaultHistoryLimit {
		t.Fatalf("expected default limit %d, got %d", defaultHistoryLimit, cmd.histLimit)
	}

	svc.History(context.Background(), 3)
	if cmd.histLimit != 3 {
		t.Fatalf("explicit limit not passed through, got %d", cmd.histLimit)
	}
}

func TestOvenControl_Recipes_ReturnsCopy(t *testing.T) {
	recipes := []bridge.Recipe{{Title: "Salmon", Barcode: "a|1|b"}}
	svc := newControlService(&stubCommander{}, &fakeEventRepo{}, &stubRefresher{}, recipes)

	got := svc.Recipes()
	if len(got) != 1 {
		t.Fatalf("expected 1 recipe, got %d", len(got))
	}
	got[0].Title = "mutated"
	if svc.Recipes()[0].Title != "Salmon" {
		t.Fatalf("catalog should be unaffected by caller mutation")
	}
}
