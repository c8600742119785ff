package service

import (
	bridge "tovala_bridge"
)

// snapshotSource is the slice of the coordinator the monitoring service needs.
type snapshotSource interface {
	Snapshot() (bridge.OvenSnapshot, bool)
	RequestRefresh()
}

// MonitoringService serves the last known-good snapshot. It never talks to
// the upstream API itself; the coordinator owns all polling.
type MonitoringService struct {
	source snapshotSource
}

func NewMonitoringService(source snapshotSource) *MonitoringService {
	return &MonitoringService{source: source}
}

// Snapshot returns the latest snapshot and whether the most recent refresh
// cycle succeeded. On failure the previous snapshot is still returned, so
// readers keep the last good view while the bridge reports unavailable.
func (s *MonitoringService) Snapshot() (bridge.OvenSnapshot, bool) {
	return s.source.Snapshot()
}

// RequestRefresh schedules an out-of-band poll cycle.
func (s *MonitoringService) RequestRefresh() {
	s.source.RequestRefresh()
}
