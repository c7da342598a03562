package app

import (
	"context"
	"errors"

	"github.com/dokzlo13/unictl/internal/config"
	"github.com/dokzlo13/unictl/internal/ledger"
)

// ErrNoHistory is returned when history is requested without a ledger path.
var ErrNoHistory = errors.New("run history is disabled: set ledger.path")

// History returns the latest recorded outcomes, newest first.
// It needs no connection to the management endpoint.
func History(ctx context.Context, cfg config.LedgerConfig, limit int) ([]*ledger.Entry, error) {
	if cfg.Path == "" {
		return nil, ErrNoHistory
	}
	database, l, err := openLedger(cfg, "")
	if err != nil {
		return nil, err
	}
	defer database.Close()

	return l.Recent(ctx, limit)
}
