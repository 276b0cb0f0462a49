package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/callinsight/call-pipeline/config"
)

// Open builds the backend named by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Root, log logrus.FieldLogger) (Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return NewMemory(), nil
	case "file", "":
		return NewFile(cfg.Paths.Outputs, log)
	case "postgres":
		return NewPostgres(ctx, cfg.Store.PostgresURL, cfg.Store.Table, log)
	default:
		return nil, &Error{Op: "open", Err: fmt.Errorf("unknown backend %q", cfg.Store.Backend)}
	}
}
