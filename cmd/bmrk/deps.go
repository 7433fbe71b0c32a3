package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/joestump/bmrk/internal/auth"
	"github.com/joestump/bmrk/internal/bus"
	"github.com/joestump/bmrk/internal/cache"
	"github.com/joestump/bmrk/internal/config"
	"github.com/joestump/bmrk/internal/dataservice"
	"github.com/joestump/bmrk/internal/db"
	"github.com/joestump/bmrk/internal/errs"
	"github.com/joestump/bmrk/internal/kv"
	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/redisconn"
	"github.com/joestump/bmrk/internal/session"
	"github.com/joestump/bmrk/internal/store"
)

func newLogger(cfg *config.Config) (logger.Logger, error) {
	return logger.New(cfg.Log.Level, cfg.Log.Pretty)
}

// clientDeps is everything the agent and popup share: the kv store holding
// the session and cache, the bus and the data service. The agent and each
// popup are separate processes, so both kv and bus sit on shared storage.
type clientDeps struct {
	kv       kv.Store
	bus      bus.Bus
	sessions *session.Store
	svc      dataservice.Service
	cache    *cache.Store

	closers []func() error
}

func (d *clientDeps) Close() error {
	var errList []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errList = append(errList, d.closers[i]())
	}
	return errors.Join(errList...)
}

// openClient wires the shared state. When local is set the data service runs
// in-process against db.* instead of over HTTP.
func openClient(ctx context.Context, cfg *config.Config, local bool, log logger.Logger) (*clientDeps, error) {
	d := &clientDeps{}

	var rdb *redis.Client
	if cfg.KV.Driver == "redis" || cfg.Bus.Driver == "redis" {
		c, err := redisconn.Connect(ctx, redisconn.FromConfig(cfg), log.Named("redis"))
		if err != nil {
			return nil, err
		}
		rdb = c
		d.closers = append(d.closers, c.Close)
	}

	var stateDB *sqlx.DB
	switch cfg.KV.Driver {
	case "memory":
		d.kv = kv.NewMemory()
	case "redis":
		d.kv = kv.NewRedis(rdb)
	default:
		sdb, err := openDB(cfg.KV.Driver, cfg.KV.DSN)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("open state store: %w", err)
		}
		stateDB = sdb
		d.closers = append(d.closers, stateDB.Close)
		d.kv = kv.NewSQL(stateDB)
	}

	switch cfg.Bus.Driver {
	case "redis":
		d.bus = bus.NewRedis(rdb, log.Named("bus"))
	default:
		if stateDB == nil {
			_ = d.Close()
			return nil, fmt.Errorf("bus driver %q needs a SQL state store", cfg.Bus.Driver)
		}
		d.bus = bus.NewSQL(stateDB, log.Named("bus"))
	}
	d.closers = append(d.closers, d.bus.Close)

	d.sessions = session.NewStore(d.kv)

	if local {
		database, err := openDB(cfg.DB.Driver, cfg.DB.DSN)
		if err != nil {
			_ = d.Close()
			return nil, err
		}
		d.closers = append(d.closers, database.Close)
		tokens := auth.NewSQLTokenStore(database)
		d.svc = dataservice.NewLocal(dataservice.LocalDeps{
			Bookmarks: store.NewBookmarkStore(database),
			Tags:      store.NewTagStore(database),
			Usage:     store.NewUsageStore(database),
			Users:     store.NewUserStore(database),
			Tokens:    tokens,
			Issuer:    auth.NewIssuer(tokens, cfg.TokenLifetime, cfg.RefreshLifetime),
			Sessions:  d.sessions,
		})
	} else {
		d.svc = dataservice.NewClient(cfg.DataService.URL, cfg.DataService.Timeout, d.sessions, log.Named("dataservice"))
	}

	d.cache = cache.New(d.kv, d.svc, ownerOf(d.svc),
		cache.WithFreshness(cfg.Cache.Freshness),
		cache.WithLogger(log.Named("cache")),
	)
	return d, nil
}

func openDB(driver, dsn string) (*sqlx.DB, error) {
	database, err := db.New(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database, driver); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

// ownerOf resolves the cache owner from the signed-in session.
func ownerOf(svc dataservice.Service) cache.OwnerFunc {
	return func(ctx context.Context) (string, error) {
		sess, err := svc.GetSession(ctx)
		if err != nil {
			return "", err
		}
		if sess == nil {
			return "", errs.New(errs.Auth, "owner", errs.ErrNoSession)
		}
		return sess.User.ID, nil
	}
}
