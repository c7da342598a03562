// Package app wires configuration, the Unisphere client, the run history
// and the reconciliation orchestrator together for one CLI invocation.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/unictl/internal/config"
	"github.com/dokzlo13/unictl/internal/db"
	"github.com/dokzlo13/unictl/internal/ledger"
	"github.com/dokzlo13/unictl/internal/reconcile"
	"github.com/dokzlo13/unictl/internal/unisphere"
)

// ErrNoSymmID is returned when neither config, flags nor the manifest name an array.
var ErrNoSymmID = errors.New("symm_id is required")

// App is the application container for a single run.
type App struct {
	cfg    *config.Config
	client *unisphere.Client
	db     *db.DB
	ledger *ledger.Ledger
	runID  string
}

// New builds the client and opens the run history when one is configured.
// Every run gets a fresh uuid that tags its log lines and history entries.
func New(cfg *config.Config) (*App, error) {
	client, err := unisphere.NewClient(unisphere.Config{
		URL:          cfg.Unisphere.URL,
		User:         cfg.Unisphere.User,
		Password:     cfg.Unisphere.Password.Reveal(),
		APIVersion:   cfg.Unisphere.APIVersion,
		Insecure:     cfg.Unisphere.InsecureTLS(),
		Timeout:      cfg.Unisphere.Timeout.Duration(),
		RateLimitRPS: cfg.Unisphere.RateLimitRPS,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		client: client,
		runID:  uuid.NewString(),
	}

	if cfg.Ledger.Path != "" {
		database, l, err := openLedger(cfg.Ledger, a.runID)
		if err != nil {
			client.Close()
			return nil, err
		}
		a.db, a.ledger = database, l
	}

	log.Debug().
		Str("run_id", a.runID).
		Str("url", client.BaseURI()).
		Str("user", cfg.Unisphere.User).
		Bool("insecure", cfg.Unisphere.InsecureTLS()).
		Bool("history", a.ledger != nil).
		Msg("Application initialized")

	return a, nil
}

// RunID returns the identifier of this run.
func (a *App) RunID() string {
	return a.runID
}

// Close releases the client and the database.
func (a *App) Close() error {
	a.client.Close()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *App) orchestrator() *reconcile.Orchestrator {
	// A nil *Ledger must not become a non-nil Recorder.
	var recorder reconcile.Recorder
	if a.ledger != nil {
		recorder = a.ledger
	}
	return reconcile.NewOrchestrator(a.client, reconcile.ProbeOptions{
		Skip:           a.cfg.Probe.Skip,
		ExpectedStatus: a.cfg.Probe.ExpectedStatus,
	}, recorder, a.runID)
}

func (a *App) waitConfig() unisphere.WaitConfig {
	w := a.cfg.DeleteWait
	return unisphere.WaitConfig{
		MaxAttempts:     w.MaxAttempts,
		InitialInterval: w.InitialInterval.Duration(),
		MaxInterval:     w.MaxInterval.Duration(),
		Multiplier:      w.Multiplier,
		Timeout:         w.Timeout.Duration(),
	}
}

// openLedger opens the history database and applies the retention policy.
func openLedger(cfg config.LedgerConfig, runID string) (*db.DB, *ledger.Ledger, error) {
	database, err := db.Open(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	l := ledger.New(database.DB, runID)

	if cfg.RetentionDays > 0 {
		retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
		removed, err := l.DeleteOlderThan(context.Background(), retention)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to prune run history")
		} else if removed > 0 {
			log.Debug().Int64("removed", removed).Msg("Pruned run history")
		}
	}
	return database, l, nil
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
