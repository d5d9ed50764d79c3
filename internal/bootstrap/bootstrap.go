package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	activityinadapter "tether/internal/modules/activity/adapter/in"
	activityoutadapter "tether/internal/modules/activity/adapter/out"
	activityservice "tether/internal/modules/activity/service"
	activityusecase "tether/internal/modules/activity/usecase"
	connectivityoutadapter "tether/internal/modules/connectivity/adapter/out"
	connectivityin "tether/internal/modules/connectivity/port/in"
	connectivityout "tether/internal/modules/connectivity/port/out"
	connectivityservice "tether/internal/modules/connectivity/service"
	connectivityusecase "tether/internal/modules/connectivity/usecase"
	storeoutadapter "tether/internal/modules/localstore/adapter/out"
	storeservice "tether/internal/modules/localstore/service"
	storeusecase "tether/internal/modules/localstore/usecase"
	plannerinadapter "tether/internal/modules/planner/adapter/in"
	planneroutadapter "tether/internal/modules/planner/adapter/out"
	plannerservice "tether/internal/modules/planner/service"
	plannerusecase "tether/internal/modules/planner/usecase"
	sessioninadapter "tether/internal/modules/session/adapter/in"
	sessionoutadapter "tether/internal/modules/session/adapter/out"
	sessiondomain "tether/internal/modules/session/domain"
	sessionout "tether/internal/modules/session/port/out"
	sessionservice "tether/internal/modules/session/service"
	sessionusecase "tether/internal/modules/session/usecase"
	syncinadapter "tether/internal/modules/sync/adapter/in"
	syncoutadapter "tether/internal/modules/sync/adapter/out"
	syncdomain "tether/internal/modules/sync/domain"
	syncservice "tether/internal/modules/sync/service"
	syncusecase "tether/internal/modules/sync/usecase"
	"tether/internal/platform/clock"
	"tether/internal/platform/config"
	"tether/internal/platform/id"
	"tether/internal/platform/logging"
	"tether/internal/platform/sqlitedb"
	"tether/internal/platform/tx"
)

// App is the device-side object graph: the local cache, the session and
// planner use cases, and the sync engine talking to the remote store.
type App struct {
	SessionCLI  sessioninadapter.CLIHandler
	PlannerCLI  plannerinadapter.CLIHandler
	SyncCLI     syncinadapter.CLIHandler
	ActivityCLI activityinadapter.CLIHandler
	Monitor     connectivityin.Monitor
	Registry    *prometheus.Registry
	Logger      hclog.Logger

	session *sessionservice.SessionService
	db      *sql.DB
	conn    *grpc.ClientConn
}

func New(cfg config.Config, logger hclog.Logger) (*App, error) {
	logger = logging.OrNull(logger)
	clk := clock.SystemClock{}
	ids := id.UUID{}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	db, err := sqlitedb.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	app := &App{Registry: registry, Logger: logger, db: db}
	fail := func(err error) (*App, error) {
		_ = app.Close()
		return nil, err
	}
	txm := tx.NewSQLManager(db)

	queueRepo, err := syncoutadapter.NewSQLiteQueueStore(db)
	if err != nil {
		return fail(fmt.Errorf("new sync queue store: %w", err))
	}
	checkpoints, err := syncoutadapter.NewSQLiteCheckpointStore(db)
	if err != nil {
		return fail(fmt.Errorf("new checkpoint store: %w", err))
	}
	records, err := storeoutadapter.NewSQLiteRecordStore(db)
	if err != nil {
		return fail(fmt.Errorf("new record store: %w", err))
	}

	activityUC := activityusecase.NewInteractor(activityservice.NewActivityService(
		clk, ids, activityoutadapter.NewFileActivityStore(cfg.Home), logger,
	))

	metrics := syncservice.NewMetrics(registry)
	policy := syncdomain.RetryPolicy{
		MaxRetries:  cfg.Sync.MaxRetries,
		BaseBackoff: cfg.Sync.BaseBackoff,
		MaxBackoff:  cfg.Sync.MaxBackoff,
	}
	queue := syncservice.NewQueue(clk, ids, queueRepo, txm, policy, activityUC, metrics, logger)
	store := storeusecase.NewInteractor(storeservice.NewStoreService(clk, records, queue, txm, logger))

	var notes sessionout.NoteStore
	if cfg.Notes.Dir != "" {
		notes = sessionoutadapter.NewVaultNoteStore(cfg.Notes.Dir)
	}
	app.session = sessionservice.NewSessionService(
		clk, ids,
		sessionoutadapter.NewRecordSessionStore(store),
		notes,
		activityUC,
		cooldownPolicy(cfg.Cooldown),
		logger,
	)
	plannerUC := plannerusecase.NewInteractor(plannerservice.NewPlannerService(
		clk, ids, planneroutadapter.NewRecordPlannerStore(store), logger,
	), clk)

	conn, err := grpc.NewClient(cfg.Remote.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fail(fmt.Errorf("dial remote %s: %w", cfg.Remote.Addr, err))
	}
	app.conn = conn
	remote := syncoutadapter.NewGRPCRemoteStore(conn, cfg.Remote.Timeout)

	var prober connectivityout.Prober
	if cfg.Remote.HealthURL != "" {
		prober = connectivityoutadapter.NewHTTPHealthProber(cfg.Remote.HealthURL, &http.Client{Timeout: cfg.Remote.Timeout})
	} else {
		prober = connectivityoutadapter.NewGRPCHealthProber(conn)
	}
	app.Monitor = connectivityusecase.NewInteractor(connectivityservice.NewMonitor(prober, clk, connectivityservice.Options{
		Interval:         cfg.Monitor.Interval,
		Timeout:          cfg.Remote.Timeout,
		FailureThreshold: cfg.Monitor.FailureThreshold,
	}, logger))

	resolver := syncservice.NewResolver(clk, store, remote, queue, activityUC, metrics, logger)
	engine := syncservice.NewEngine(clk, store, remote, checkpoints, queue, resolver, app.Monitor, activityUC, metrics,
		syncservice.EngineOptions{Interval: cfg.Sync.Interval}, logger)

	app.SessionCLI = sessioninadapter.NewCLIHandler(sessionusecase.NewInteractor(app.session))
	app.PlannerCLI = plannerinadapter.NewCLIHandler(plannerUC)
	app.SyncCLI = syncinadapter.NewCLIHandler(syncusecase.NewInteractor(engine, queue), syncusecase.NewConflictInteractor(resolver))
	app.ActivityCLI = activityinadapter.NewCLIHandler(activityUC)
	return app, nil
}

func cooldownPolicy(cfg config.CooldownConfig) sessiondomain.CooldownPolicy {
	return sessiondomain.CooldownPolicy{
		Window:     cfg.Window,
		Threshold:  cfg.Threshold,
		Base:       cfg.Base,
		Multiplier: cfg.Multiplier,
		Max:        cfg.Max,
		ResetAfter: cfg.ResetAfter,
	}
}

// WatchConfig reapplies the cooldown policy whenever the config file changes.
// Other settings take effect on the next start.
func (a *App) WatchConfig(loader *config.Loader) bool {
	return loader.Watch(func(cfg config.Config, err error) {
		if err != nil {
			a.Logger.Warn("ignoring invalid config change", "path", loader.Path(), "error", err)
			return
		}
		a.session.SetCooldownPolicy(cooldownPolicy(cfg.Cooldown))
	})
}

// RunDaemon probes the remote and syncs the owners until ctx ends. When
// metricsAddr is set, the registry is served on it as well.
func (a *App) RunDaemon(ctx context.Context, owners []string, metricsAddr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancel()
			}
		}()
	}

	run("monitor", a.Monitor.Run)
	run("sync", func(ctx context.Context) error { return a.SyncCLI.Run(ctx, owners) })
	if metricsAddr != "" {
		run("metrics", func(ctx context.Context) error { return ServeHTTP(ctx, metricsAddr, a.MetricsHandler(), a.Logger) })
	}
	a.Logger.Info("daemon started", "owners", len(owners), "metrics", metricsAddr)
	wg.Wait()
	return errors.Join(errs...)
}

func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry})
}

// Close waits for in-flight session intents, then releases the connection
// and the database.
func (a *App) Close() error {
	if a.session != nil {
		a.session.Close()
	}
	var errs []error
	if a.conn != nil {
		errs = append(errs, a.conn.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// ServeHTTP runs handler on addr until ctx ends, then shuts down gracefully.
func ServeHTTP(ctx context.Context, addr string, handler http.Handler, logger hclog.Logger) error {
	server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logging.OrNull(logger).Info("http listening", "addr", addr)
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdown)
	}
}
