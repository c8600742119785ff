package service

import (
	"context"
	"time"

	bridge "tovala_bridge"
	"tovala_bridge/internal/logger"
	"tovala_bridge/internal/repository"
	"tovala_bridge/internal/tovala"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Monitoring exposes the coordinator's last snapshot and availability.
type Monitoring interface {
	Snapshot() (bridge.OvenSnapshot, bool)
	RequestRefresh()
}

// OvenControl exposes user-initiated commands and read-only catalog/history.
type OvenControl interface {
	StartCook(ctx context.Context, barcode string) error
	StartRecipe(ctx context.Context, title string) error
	CancelCook(ctx context.Context) error
	History(ctx context.Context, limit int) []bridge.CookRecord
	Recipes() []bridge.Recipe
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]bridge.OvenEvent, error)
}

// Poller runs the background refresh loop.
// Stop via context cancellation in main() for graceful shutdown.
type Poller interface {
	Run(ctx context.Context)
}

// LogFilter supports event filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "TIMER_FINISHED", "COOK_START", "COOK_CANCEL", "ERROR"
}

// Options carries the configuration NewService needs beyond its dependencies.
type Options struct {
	OvenID     string
	Recipes    []bridge.Recipe
	SigningKey string
	TokenTTL   time.Duration
}

//
// Root Service aggregates all sub-services.
//

type Service struct {
	Authorization
	Monitoring
	OvenControl
	EventLog
	Poller
}

// NewService wires the repository layer, the polling coordinator and the
// upstream client into concrete services.
func NewService(repos *repository.Repository, coord *tovala.Coordinator, client *tovala.Client, log *logger.Logger, opts Options) *Service {
	return &Service{
		Authorization: NewAuthService(repos.Auth, opts.SigningKey, opts.TokenTTL),
		Monitoring:    NewMonitoringService(coord),
		OvenControl:   NewOvenControlService(client, repos.EventRepo, coord, log, opts.OvenID, opts.Recipes),
		EventLog:      NewEventLogService(repos.EventRepo),
		Poller:        coord,
	}
}
