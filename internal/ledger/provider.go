package ledger

import (
	"context"
	"fmt"

	"github.com/kandev/agentrun/internal/common/config"
	"github.com/kandev/agentrun/internal/ledger/postgres"
	"github.com/kandev/agentrun/internal/ledger/sqlite"
)

// Provide opens the ledger backend selected by cfg.Database.Driver and
// returns it alongside a cleanup func that closes the underlying connection.
func Provide(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		store, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		return store, store.Close, nil
	case "sqlite", "":
		store, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown database.driver %q", cfg.Database.Driver)
	}
}
