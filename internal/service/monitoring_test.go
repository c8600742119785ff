package service

import (
	"testing"
	"time"

	bridge "tovala_bridge"
)

type stubSnapshotSource struct {
	snap     bridge.OvenSnapshot
	ok       bool
	refreshs int
}

func (s *stubSnapshotSource) Snapshot() (bridge.OvenSnapshot, bool) { return s.snap, s.ok }
func (s *stubSnapshotSource) RequestRefresh()                       { s.refreshs++ }

func TestMonitoringService_Snapshot(t *testing.T) {
	src := &stubSnapshotSource{
		snap: bridge.OvenSnapshot{
			State:            "cooking",
			Barcode:          "133A254|463|5E34BF80",
			RemainingSeconds: 90,
			UpdatedAt:        time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		},
		ok: true,
	}
	svc := NewMonitoringService(src)

	snap, ok := svc.Snapshot()
	if !ok {
		t.Fatalf("expected available snapshot")
	}
	if snap.State != "cooking" || snap.RemainingSeconds != 90 {
		t.Fatalf("snapshot not passed through: %+v", snap)
	}
}

func TestMonitoringService_SnapshotUnavailable(t *testing.T) {
	src := &stubSnapshotSource{snap: bridge.OvenSnapshot{State: "idle"}, ok: false}
	svc := NewMonitoringService(src)

	snap, ok := svc.Snapshot()
	if ok {
		t.Fatalf("expected unavailable after failed refresh")
	}
	// Last good view is still served.
	if snap.State != "idle" {
		t.Fatalf("expected stale snapshot to be returned, got %+v", snap)
	}
}

func TestMonitoringService_RequestRefresh(t *testing.T) {
	src := &stubSnapshotSource{}
	svc := NewMonitoringService(src)

	svc.RequestRefresh()
	svc.RequestRefresh()
	if src.refreshs != 2 {
		t.Fatalf("expected 2 refresh requests, got %d", src.refreshs)
	}
}
