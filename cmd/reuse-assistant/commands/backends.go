package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/reuse-assistant/internal/config"
	"github.com/yourorg/reuse-assistant/internal/db"
	"github.com/yourorg/reuse-assistant/internal/s3"
)

// staleRunAge is how long a run may go without progress before it is
// considered abandoned.
const staleRunAge = time.Hour

func openHistory(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*db.Store, error) {
	store, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ping run history: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		if !isInsufficientPrivilege(err) {
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		log.WithError(err).Warn("ensure schema skipped due to insufficient privilege")
	}
	return store, nil
}

func isInsufficientPrivilege(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42501"
}

func openArchive(cfg config.Config) (*s3.Archive, error) {
	client, err := s3.New(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return &s3.Archive{Client: client, Bucket: cfg.ManifestBucket}, nil
}
