package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/artpar/storyshare/internal/auth"
	"github.com/artpar/storyshare/internal/config"
	"github.com/artpar/storyshare/internal/connectivity"
	"github.com/artpar/storyshare/internal/database"
	"github.com/artpar/storyshare/internal/gateway"
	gatewayhttp "github.com/artpar/storyshare/internal/gateway/http"
	"github.com/artpar/storyshare/internal/notify"
	"github.com/artpar/storyshare/internal/offline"
	"github.com/artpar/storyshare/internal/push"
	"github.com/artpar/storyshare/internal/push/local"
	"github.com/artpar/storyshare/internal/settings"
	settingssqlite "github.com/artpar/storyshare/internal/settings/sqlite"
	"github.com/artpar/storyshare/internal/story"
	storysqlite "github.com/artpar/storyshare/internal/story/sqlite"
	"github.com/rs/zerolog"
)

// App is the main application container with dependency injection.
type App struct {
	config   config.Config
	logger   zerolog.Logger
	in       io.Reader
	out      io.Writer
	db       *sql.DB
	ownsDB   bool
	notifier notify.Notifier
	gateway  gateway.Gateway

	stories  story.Store
	cache    *story.Cache
	settings settings.Store
	sessions *auth.Sessions
	device   *local.Device
	push     *push.Manager
	sync     *offline.Manager
	monitor  *connectivity.Monitor
}

// Option is a function that configures the App.
type Option func(*App)

// WithConfig sets the application configuration.
func WithConfig(cfg config.Config) Option {
	return func(a *App) {
		a.config = cfg
	}
}

// WithLogger sets the application logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithIO sets where prompts are read from and written to.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
	}
}

// WithDatabase uses db instead of opening the file in the data directory.
// The caller keeps ownership of db.
func WithDatabase(db *sql.DB) Option {
	return func(a *App) {
		a.db = db
	}
}

// WithGateway replaces the HTTP story API client.
func WithGateway(gw gateway.Gateway) Option {
	return func(a *App) {
		a.gateway = gw
	}
}

// WithNotifier replaces the terminal notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(a *App) {
		a.notifier = n
	}
}

// New wires the application from its configuration.
func New(ctx context.Context, opts ...Option) (*App, error) {
	a := &App{
		config: config.DefaultConfig(),
		logger: zerolog.Nop(),
		in:     os.Stdin,
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.db == nil {
		db, err := database.OpenInDir(a.config.DataDir)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.ownsDB = true
	}

	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.config

	stories, err := storysqlite.NewWithDB(a.db)
	if err != nil {
		return err
	}
	a.stories = stories
	a.cache = story.NewCache(stories, story.WithLogger(a.logger))

	prefs, err := settingssqlite.NewWithDB(a.db)
	if err != nil {
		return err
	}
	a.settings = prefs
	a.sessions = auth.NewSessions(a.settings)

	if a.gateway == nil {
		a.gateway = gatewayhttp.NewClient(
			gatewayhttp.WithBaseURL(cfg.BaseURL),
			gatewayhttp.WithTimeout(cfg.RequestTimeout),
			gatewayhttp.WithTokenSource(a.sessions),
			gatewayhttp.WithLogger(a.logger),
		)
	}
	if a.notifier == nil {
		a.notifier = notify.NewTerminalNotifier(a.out)
	}

	a.device = local.NewDevice(a.settings, a.in, a.out,
		local.WithServiceURL(cfg.PushServiceURL),
		local.WithLogger(a.logger),
	)
	a.push = push.NewManager(
		push.LoadState(ctx, a.settings, a.logger),
		a.device, a.device, a.gateway,
		cfg.VAPIDPublicKey,
		push.WithBackoff(cfg.SubscribeBackoff),
		push.WithLogger(a.logger),
	)

	a.monitor = connectivity.NewMonitor(
		connectivity.HTTPProbe{URL: cfg.BaseURL},
		connectivity.WithInterval(cfg.ProbeInterval),
		connectivity.WithLogger(a.logger),
		connectivity.OnChange(func(ctx context.Context, online bool) {
			a.sync.HandleConnectivity(ctx, online)
		}),
	)

	a.sync = offline.NewManager(a.cache, a.gateway, a.sessions,
		offline.WithNotifier(a.notifier),
		offline.WithGrantChecker(a.push),
		offline.WithConnectivity(a.monitor),
		offline.WithDetailTimeout(cfg.DetailTimeout),
		offline.WithLogger(a.logger),
	)
	return nil
}

// Config returns the application configuration.
func (a *App) Config() config.Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() zerolog.Logger {
	return a.logger
}

// Out returns the output writer.
func (a *App) Out() io.Writer {
	return a.out
}

// Sync returns the sync manager.
func (a *App) Sync() *offline.Manager {
	return a.sync
}

// Push returns the subscription lifecycle manager.
func (a *App) Push() *push.Manager {
	return a.push
}

// Device returns the local push device.
func (a *App) Device() *local.Device {
	return a.device
}

// Monitor returns the connectivity monitor.
func (a *App) Monitor() *connectivity.Monitor {
	return a.monitor
}

// Sessions returns the login session keeper.
func (a *App) Sessions() *auth.Sessions {
	return a.sessions
}

// Gateway returns the story API.
func (a *App) Gateway() gateway.Gateway {
	return a.gateway
}

// Login authenticates against the API and stores the session.
func (a *App) Login(ctx context.Context, email, password string) (auth.Session, error) {
	session, err := a.gateway.Login(ctx, email, password)
	if err != nil {
		return auth.Session{}, err
	}
	if err := a.sessions.Save(ctx, session); err != nil {
		return auth.Session{}, err
	}
	a.logger.Info().Str("user_id", session.UserID).Msg("logged in")
	return session, nil
}

// Logout forgets the session and the cached stories. Stories waiting for
// upload are dropped with the rest of the cache.
func (a *App) Logout(ctx context.Context) error {
	if err := a.sessions.Clear(ctx); err != nil {
		return err
	}
	if !a.cache.Clear(ctx) {
		return fmt.Errorf("failed to clear story cache: %w", story.ErrUnavailable)
	}
	return nil
}

// Close releases the stores and the database.
func (a *App) Close() error {
	var errs []error
	if a.stories != nil {
		errs = append(errs, a.stories.Close())
	}
	if a.settings != nil {
		errs = append(errs, a.settings.Close())
	}
	if a.ownsDB && a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
