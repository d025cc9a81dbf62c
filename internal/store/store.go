// Package store opens the persistent store selected by the configuration.
package store

import (
	"context"
	"fmt"

	"github.com/CZERTAINLY/notary-scan/internal/model"
	"github.com/CZERTAINLY/notary-scan/internal/store/bom"
	"github.com/CZERTAINLY/notary-scan/internal/store/postgres"
	"github.com/CZERTAINLY/notary-scan/internal/store/pubsub"
	"github.com/CZERTAINLY/notary-scan/internal/store/sqlite"
)

func Open(ctx context.Context, cfg model.StoreConfig) (model.StoreCloser, error) {
	var (
		st  model.StoreCloser
		err error
	)
	switch cfg.Driver {
	case model.StorePostgres:
		st, err = unwrap(postgres.Open(ctx, cfg.DSN))
	case model.StoreSQLite:
		st, err = unwrap(sqlite.Open(ctx, cfg.DSN))
	case model.StoreBOM:
		st, err = unwrap(bom.Open(cfg.BOMOutput))
	case model.StorePubSub:
		st, err = unwrap(pubsub.Open(ctx, cfg.Project, cfg.Topic))
	default:
		return nil, fmt.Errorf("unsupported store driver %q, expected one of %v", cfg.Driver, model.StoreDrivers())
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Driver, err)
	}
	return st, nil
}

// unwrap avoids returning a typed nil as a non nil interface
func unwrap[S model.StoreCloser](s S, err error) (model.StoreCloser, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
