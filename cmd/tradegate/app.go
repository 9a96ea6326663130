package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	"k8s.io/client-go/util/workqueue"

	"github.com/marqetfi/tradegate/cmd/tradegate/internal/config"
	"github.com/marqetfi/tradegate/configstore"
	"github.com/marqetfi/tradegate/deposit"
	"github.com/marqetfi/tradegate/internal/api"
	"github.com/marqetfi/tradegate/internal/crypt"
	"github.com/marqetfi/tradegate/internal/origin"
	tglog "github.com/marqetfi/tradegate/log"
	"github.com/marqetfi/tradegate/pkg/dblog"
	"github.com/marqetfi/tradegate/price"
	"github.com/marqetfi/tradegate/provider"
	"github.com/marqetfi/tradegate/provider/catalog"
	"github.com/marqetfi/tradegate/provider/ostium"
	"github.com/marqetfi/tradegate/settings"
	"github.com/marqetfi/tradegate/storage"
	"github.com/marqetfi/tradegate/trading"
	"github.com/marqetfi/tradegate/wallet"
)

// App owns every component of the daemon and their shutdown order.
type App struct {
	Config   config.AppConfig
	Logger   *slog.Logger
	Settings settings.Settings

	Store  *storage.Storage
	Cipher *crypt.Cipher

	Configs        *configstore.Service
	Admin          *configstore.AdminService
	OstiumSettings *ostium.SettingsService
	Factory        *provider.Factory

	Trading  *trading.Service
	Prices   *price.Service
	Wallets  *wallet.Service
	Deposits *deposit.Service

	DepositQueue workqueue.TypedRateLimitingInterface[string]

	Server      *http.Server
	serverErrCh chan error
	dbLog       *dblog.Handler

	wg            sync.WaitGroup
	workerCtx     context.Context
	cancelWorkers context.CancelFunc
}

// NewApp wires storage, the config store, the provider stack, the domain
// services, and the HTTP server. Nothing starts running until Start.
func NewApp(cfg config.AppConfig, logger *slog.Logger) (*App, error) {
	env := settings.FromEnv()
	if env.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required for encrypted configuration")
	}

	cipher, err := crypt.New(env.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	// Persist warnings and errors alongside the console logs so operators
	// can query them back over the admin API.
	dbLog, err := dblog.NewHandler(store.LogInsertFunc(), dblog.WithMinLevel(slog.LevelWarn))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init db log sink: %w", err)
	}
	logger = slog.New(tglog.NewFanoutHandler(logger.Handler(), dbLog))
	slog.SetDefault(logger)

	configs := configstore.NewService(store, cipher, &env,
		configstore.WithServiceLogger(logger.With(slog.String(tglog.ComponentKey, "configstore"))))
	admin := configstore.NewAdminService(store, cipher,
		configstore.WithAdminLogger(logger.With(slog.String(tglog.ComponentKey, "configstore"))))
	ostiumSettings := ostium.NewSettingsService(store, cipher,
		ostium.WithSettingsLogger(logger.With(slog.String(tglog.ComponentKey, "ostium"))))

	registries := catalog.DefaultRegistries(catalog.Deps{
		Settings:       &env,
		OstiumSettings: ostiumSettings,
		Logger:         logger,
	})
	factory := provider.NewFactory(registries, configs, &env,
		provider.WithFactoryLogger(logger.With(slog.String(tglog.ComponentKey, "factory"))))

	tradingSvc := trading.NewService(factory,
		trading.WithLogger(logger.With(slog.String(tglog.ComponentKey, "trading"))))
	priceSvc := price.NewService(factory,
		price.WithLogger(logger.With(slog.String(tglog.ComponentKey, "price"))))
	walletSvc := wallet.NewService(factory, store,
		wallet.WithLogger(logger.With(slog.String(tglog.ComponentKey, "wallet"))))

	depositQueue := deposit.NewQueue(cfg.DepositRetryBase, cfg.DepositRetryMax)
	depositSvc := deposit.NewService(factory, walletSvc, depositQueue,
		deposit.WithLogger(logger.With(slog.String(tglog.ComponentKey, "deposit"))))

	handlerOpts := []api.Option{api.WithLogger(logger.With(slog.String(tglog.ComponentKey, "api")))}
	if cfg.AuthRequired {
		handlerOpts = append(handlerOpts, api.WithAuth(factory))
	}
	handler := api.NewHandler(api.Deps{
		Store:    store,
		Configs:  configs,
		Admin:    admin,
		Ostium:   ostiumSettings,
		Trading:  tradingSvc,
		Prices:   priceSvc,
		Wallets:  walletSvc,
		Deposits: depositSvc,
	}, handlerOpts...)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: origin.AllowedOrigins(cfg.HTTPListen, cfg.PublicOrigin),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
	})

	mux := http.NewServeMux()
	apiWithCORS := corsMiddleware.Handler(handler.Routes())
	mux.Handle("/api/", apiWithCORS)
	mux.Handle("/api", apiWithCORS)

	workerCtx, cancelWorkers := context.WithCancel(tglog.ContextWithLogger(context.Background(), logger))

	return &App{
		Config:         cfg,
		Logger:         logger,
		Settings:       env,
		Store:          store,
		Cipher:         cipher,
		Configs:        configs,
		Admin:          admin,
		OstiumSettings: ostiumSettings,
		Factory:        factory,
		Trading:        tradingSvc,
		Prices:         priceSvc,
		Wallets:        walletSvc,
		Deposits:       depositSvc,
		DepositQueue:   depositQueue,
		Server: &http.Server{
			Addr:    cfg.HTTPListen,
			Handler: mux,
		},
		serverErrCh:   make(chan error, 1),
		dbLog:         dbLog,
		workerCtx:     workerCtx,
		cancelWorkers: cancelWorkers,
	}, nil
}

// Start launches the deposit workers and the HTTP listener.
func (a *App) Start() {
	for i := 0; i < a.Config.DepositWorkers; i++ {
		a.wg.Add(1)
		go deposit.RunWorker(a.workerCtx, &a.wg, a.DepositQueue, a.Deposits)
	}

	go func() {
		a.Logger.Info("http server listening", slog.String("addr", a.Config.HTTPListen))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.serverErrCh <- err
		}
		close(a.serverErrCh)
	}()
}

// ServerErrors reports a fatal listener error, if any.
func (a *App) ServerErrors() <-chan error {
	return a.serverErrCh
}

// Shutdown drains the HTTP server, stops the workers, and closes storage.
func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var firstErr error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		firstErr = fmt.Errorf("http shutdown: %w", err)
	}

	a.DepositQueue.ShutDown()
	a.cancelWorkers()
	a.wg.Wait()

	if err := a.dbLog.Close(shutdownCtx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("drain log sink: %w", err)
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close storage: %w", err)
	}
	return firstErr
}
