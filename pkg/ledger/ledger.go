package ledger

import (
	"fmt"

	"clipvault/pkg/config"
	"clipvault/pkg/logger"
)

// Open returns the tried-set store selected by the probe configuration and a
// close function for it. The file backend's tried file is created if absent.
func Open(cfg config.ProbeConfig, log logger.Logger) (Store, func() error, error) {
	switch cfg.LedgerBackend {
	case config.LedgerSQLite:
		store, err := OpenSQLite(cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.LedgerFile, "":
		store := NewFileStore(cfg.StateDir, log)
		if err := store.Ensure(); err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}
