package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/config"
	"github.com/LucasAlfare/FL-BT/internal/db"
)

// Open opens the history backend selected by cfg. It returns nil when
// history is disabled.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (Journal, error) {
	switch cfg.HistoryBackend {
	case config.HistoryNone:
		return nil, nil
	case config.HistorySQLite:
		j, err := OpenSQLite(cfg.HistoryPath)
		if err != nil {
			return nil, err
		}
		return j, nil
	case config.HistorySurrealDB:
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		dbClient, err := db.NewClient(ctx, db.Config{
			URL:        cfg.SurrealDBURL,
			Namespace:  cfg.SurrealDBNamespace,
			Database:   cfg.SurrealDBDatabase,
			Username:   cfg.SurrealDBUser,
			Password:   cfg.SurrealDBPass,
			AuthLevel:  cfg.SurrealDBAuthLevel,
			MaxRetries: cfg.SurrealDBMaxRetries,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to history store: %w", err)
		}
		if err := dbClient.InitSchema(ctx); err != nil {
			_ = dbClient.Close(ctx)
			return nil, fmt.Errorf("initialize history schema: %w", err)
		}
		return NewSurreal(dbClient), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q (want sqlite, surrealdb or none)", cfg.HistoryBackend)
	}
}
