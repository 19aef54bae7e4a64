package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/credvault/internal/adapter/driven/codec"
	"github.com/ericfisherdev/credvault/internal/adapter/driven/snapshotfile"
	sqliteadapter "github.com/ericfisherdev/credvault/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/credvault/internal/application"
	"github.com/ericfisherdev/credvault/internal/config"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// openVault wires the configured codec and snapshot store into a VaultService.
// The returned func releases the store and is safe to call once.
func openVault(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application.VaultService, func(), error) {
	secretCodec, err := newCodec(cfg)
	if err != nil {
		return nil, nil, err
	}

	snapshots, closeStore, err := newSnapshotStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	vault := application.OpenVault(ctx, snapshots, secretCodec, nil, logger)
	return vault, closeStore, nil
}

func newCodec(cfg *config.Config) (driven.SecretCodec, error) {
	switch cfg.Encoder {
	case config.EncoderSealed:
		sealed, err := codec.NewSealed(cfg.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("create sealed codec: %w", err)
		}
		return sealed, nil
	case config.EncoderBase64:
		return codec.Base64{}, nil
	default:
		return nil, fmt.Errorf("unknown encoder %q", cfg.Encoder)
	}
}

func newSnapshotStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driven.SnapshotStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendFile:
		logger.Info("using snapshot file", "path", cfg.StorePath)
		return snapshotfile.New(cfg.StorePath), func() {}, nil

	case config.BackendSQLite:
		// Open database (dual reader/writer with WAL mode).
		db, err := sqliteadapter.NewDB(ctx, cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("database opened", "path", cfg.StorePath)

		closeDB := func() {
			if err := db.Close(); err != nil {
				logger.Error("error closing database", "error", err)
			}
		}
		return sqliteadapter.NewSnapshotRepo(db), closeDB, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
