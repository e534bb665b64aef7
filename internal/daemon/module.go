package daemon

import (
	"context"
	"errors"

	"github.com/matheus3301/inbox/internal/account"
	"github.com/matheus3301/inbox/internal/api"
	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/chat"
	"github.com/matheus3301/inbox/internal/config"
	"github.com/matheus3301/inbox/internal/lock"
	"github.com/matheus3301/inbox/internal/logging"
	"github.com/matheus3301/inbox/internal/poll"
	"github.com/matheus3301/inbox/internal/profile"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/status"
	"github.com/matheus3301/inbox/internal/store"
	mirror "github.com/matheus3301/inbox/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile    string
	Settings   config.Profile
	SocketPath string // optional override for testing; empty = use default
	Quiet      bool   // log to the file only
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideRemote,
			provideSynchronizer,
			providePoller,
			provideMirror,
			provideAccounts,
			provideSessionService,
			provideChatService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	var opts []logging.Option
	if p.Quiet {
		opts = append(opts, logging.WithoutConsole())
	}
	return logging.New(profile.LogPath(p.Profile, "inboxd"), p.Profile, opts...)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.LockPath(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.MirrorDBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRemote(p Params, logger *zap.Logger) *remote.Client {
	logger.Info("backend configured", zap.String("base_url", p.Settings.BaseURL))
	return remote.New(p.Settings.BaseURL,
		remote.WithTimeout(p.Settings.RequestTimeout.Duration),
		remote.WithLogger(logger.Named("remote")),
	)
}

func provideSynchronizer(p Params, client *remote.Client, b *bus.Bus, logger *zap.Logger) *chat.Synchronizer {
	return chat.New(client, b, logger.Named("chat"), chat.Options{MessageLimit: p.Settings.PageSize})
}

func providePoller(p Params, s *chat.Synchronizer, b *bus.Bus, logger *zap.Logger) *poll.Poller {
	return poll.New(s, p.Settings.PollInterval.Duration, b, logger.Named("poll"))
}

func provideMirror(db *store.DB, b *bus.Bus, logger *zap.Logger) *mirror.Engine {
	return mirror.NewEngine(db, b, logger.Named("mirror"))
}

func provideAccounts(client *remote.Client, db *store.DB, s *chat.Synchronizer, poller *poll.Poller, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *account.Manager {
	return account.NewManager(client, db, s, poller, machine, b, logger.Named("account"))
}

func provideSessionService(p Params, machine *status.Machine, accounts *account.Manager, poller *poll.Poller, db *store.DB, b *bus.Bus, logger *zap.Logger) *api.SessionService {
	return api.NewSessionService(p.Profile, p.Settings.BaseURL, machine, accounts, poller, db, b.Dropped, logger.Named("api"))
}

func provideChatService(p Params, s *chat.Synchronizer, db *store.DB, b *bus.Bus, logger *zap.Logger) *api.ChatService {
	return api.NewChatService(s, db, b, p.Profile, logger.Named("api"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, engine *mirror.Engine, accounts *account.Manager, poller *poll.Poller, logger *zap.Logger) {
	var cancel context.CancelFunc
	restored := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start the mirror first so the restored identity is recorded.
			engine.Start(context.Background())
			accounts.Start(context.Background())

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(restored)
				if err := accounts.Restore(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("restore session", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			<-restored
			srv.Stop(ctx)
			accounts.Stop()
			poller.Wait()
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
