package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/bootstrap"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// env holds the services one quotectl invocation works with.
type env struct {
	quotes *app.QuoteService
	syncer *app.SyncService
	close  func() error

	mu      sync.Mutex
	chooser domain.ConflictResolver
}

// envFactory opens an env. Notifications and logs go to stderr.
type envFactory func(ctx context.Context, stderr io.Writer) (*env, error)

// setChooser replaces the resolver used under the manual policy.
func (e *env) setChooser(r domain.ConflictResolver) {
	e.mu.Lock()
	e.chooser = r
	e.mu.Unlock()
}

func (e *env) resolve(ctx context.Context, c domain.Conflict) (domain.Resolution, error) {
	e.mu.Lock()
	r := e.chooser
	e.mu.Unlock()

	return r.Resolve(ctx, c)
}

type envOptions struct {
	stderr       io.Writer
	logger       *slog.Logger
	seedDefaults bool
	policy       domain.ConflictPolicy
}

// newEnv builds the services around an opened store and remote.
func newEnv(store ports.Store, remote ports.RemoteQuoteSource, archiver ports.SnapshotArchiver, opts envOptions) *env {
	e := &env{
		close:   store.Close,
		chooser: domain.Always(domain.KeepRemote),
	}

	records := app.NewRecordStore(app.RecordStoreConfig{
		Repository:   store,
		Logger:       opts.logger,
		SeedDefaults: opts.seedDefaults,
	})
	records.Load(context.Background())

	notifier := printNotifier{w: opts.stderr}

	e.quotes = app.NewQuoteService(app.QuoteServiceConfig{
		Store:       records,
		Preferences: store,
		Notifier:    notifier,
		Archiver:    archiver,
		Logger:      opts.logger,
	})

	e.syncer = app.NewSyncService(app.SyncServiceConfig{
		Store:    records,
		Remote:   remote,
		Notifier: notifier,
		Logger:   opts.logger,
		Policy:   opts.policy,
		Chooser:  domain.ResolverFunc(e.resolve),
	})

	return e
}

// openEnv is the production envFactory: configuration, store and remote
// come from the same settings the service uses.
func openEnv(ctx context.Context, stderr io.Writer) (*env, error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger := bootstrap.NewLogger(cfg, stderr)

	store, err := bootstrap.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}

	remote, err := bootstrap.NewRemote(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var archiver ports.SnapshotArchiver

	minioArchiver, err := bootstrap.NewArchiver(cfg.Archive, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating snapshot archive: %w", err)
	}

	if minioArchiver != nil {
		archiver = minioArchiver
	}

	e := newEnv(store, remote, archiver, envOptions{
		stderr:       stderr,
		logger:       logger,
		seedDefaults: cfg.Store.SeedDefaults,
		policy:       domain.ConflictPolicy(cfg.Sync.ConflictPolicy),
	})
	e.setChooser(bootstrap.ManualChoice(cfg.Sync.ManualChoice))

	return e, nil
}
