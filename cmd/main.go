package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	bridge "tovala_bridge"
	"tovala_bridge/internal/handlers"
	"tovala_bridge/internal/logger"
	"tovala_bridge/internal/repository"
	"tovala_bridge/internal/server"
	"tovala_bridge/internal/service"
	"tovala_bridge/internal/tovala"
)

const startupTimeout = 30 * time.Second

func main() {
	// load config.yml before the logger so log.level applies
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.Get(viper.GetString("log.level"))

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	repos := repository.NewRepository(db)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// upstream session: login is fatal at startup, the bridge is useless
	// without it
	auth := tovala.NewAuth(tovala.Credentials{
		Email:    viper.GetString("tovala.email"),
		Password: viper.GetString("tovala.password"),
		Token:    viper.GetString("tovala.token"),
	}, viper.GetStringSlice("tovala.api_bases"), log.Named("auth"))

	startupCtx, startupCancel := context.WithTimeout(ctx, startupTimeout)
	defer startupCancel()

	if err := auth.EnsureLoggedIn(startupCtx); err != nil {
		log.Fatalw("upstream login failed", "err", err)
	}
	log.Infow("upstream session established", "base", auth.Base(), "user_id", auth.UserID())

	client := tovala.NewClient(auth, log.Named("api"))

	ovenID := discoverOven(startupCtx, client, log)

	// recipe catalog is optional; the bridge still serves cooking state
	// without it
	recipes, err := client.CustomRecipes(startupCtx)
	if err != nil {
		log.Warnw("recipe catalog unavailable", "err", err)
	} else {
		log.Infow("recipe catalog loaded", "count", len(recipes))
	}

	coord := tovala.NewCoordinator(
		client,
		ovenID,
		viper.GetDuration("tovala.poll_interval"),
		timerEventRecorder(ctx, repos.EventRepo, log),
		log.Named("poller"),
	)

	// prime the snapshot before serving; a failed first poll is not fatal
	if err := coord.Refresh(startupCtx); err != nil {
		log.Warnw("initial refresh failed", "err", err)
	}

	services := service.NewService(repos, coord, client, log, service.Options{
		OvenID:     ovenID,
		Recipes:    recipes,
		SigningKey: viper.GetString("auth.signing_key"),
		TokenTTL:   viper.GetDuration("auth.token_ttl"),
	})
	apiHandler := handlers.NewHandler(services, log.Named("http"))

	// start poll loop
	go services.Poller.Run(ctx)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "bridge.db")
		dbPath = "bridge.db"
	}
	return repository.InitDB(dbPath)
}

// discoverOven returns the configured oven id, or falls back to the first
// oven on the account. An account without ovens is not fatal: the bridge
// starts degraded and serves empty snapshots.
func discoverOven(ctx context.Context, client *tovala.Client, log *logger.Logger) string {
	if id := viper.GetString("tovala.oven_id"); id != "" {
		return id
	}
	ovens, err := client.ListOvens(ctx)
	if err != nil {
		log.Warnw("oven discovery failed", "err", err)
		return ""
	}
	if len(ovens) == 0 {
		log.Warnw("no ovens on account")
		return ""
	}
	id := ovens[0].DeviceID()
	log.Infow("oven discovered", "oven_id", id, "name", ovens[0].Name)
	return id
}

// timerEventRecorder returns the coordinator callback that persists
// timer-finished transitions to the event log.
func timerEventRecorder(ctx context.Context, events repository.EventRepo, log *logger.Logger) func(tovala.TimerFinished) {
	return func(ev tovala.TimerFinished) {
		log.Infow("cook timer finished", "oven_id", ev.OvenID)
		err := events.Append(ctx, bridge.OvenEvent{
			EventID:     uuid.NewString(),
			OccurredAt:  time.Now().UTC(),
			Type:        service.EventTimerFinished,
			Description: "Cook timer reached zero",
			Metadata:    map[string]any{"oven_id": ev.OvenID},
		})
		if err != nil {
			log.Warnw("event append failed", "err", err)
		}
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
