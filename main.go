package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/yeremiapane/restaurant-floor/api"
	"github.com/yeremiapane/restaurant-floor/apiclient"
	"github.com/yeremiapane/restaurant-floor/config"
	"github.com/yeremiapane/restaurant-floor/events"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/reconciler"
	"github.com/yeremiapane/restaurant-floor/router"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/session"
	"github.com/yeremiapane/restaurant-floor/storage"
	"github.com/yeremiapane/restaurant-floor/utils"
)

func main() {
	utils.InitLogger()
	if err := config.LoadEnv(); err != nil {
		utils.InfoLogger.Printf("Warning: .env could not be loaded: %v", err)
	}
	cfg := config.Load()
	utils.InitLoggerWithLevel(cfg.LogLevel)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	durable, closeStore, err := openStore(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to open storage: %v", err)
	}
	defer closeStore()

	manager := session.NewManager(durable, storage.NewMemoryStore())
	client := apiclient.New(apiclient.Options{
		BaseURL:            cfg.APIBaseURL,
		RefreshBackoff:     cfg.RefreshBackoff,
		MaxRefreshAttempts: cfg.RefreshMaxRetries,
		CoalesceRefresh:    cfg.CoalesceRefresh,
	}, manager)
	auth := api.NewAuth(client)
	manager.SetBackend(auth)

	floor := reconciler.New(api.NewTables(client), api.NewReservations(client), reconciler.Options{
		BranchID:          cfg.BranchID,
		PageSize:          cfg.PageSize,
		ReservationWindow: cfg.ReservationWindow,
	})
	hub := events.NewHub()
	floor.OnChange(func(view reconciler.FloorView) {
		hub.BroadcastFloor(view)
	})
	manager.OnForcedLogout(func(route string) {
		floor.SetBranch("")
		hub.BroadcastSessionEnded(route)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the router only serves once the session is resolved
	if err := manager.Initialize(ctx); err != nil {
		utils.ErrorLogger.Fatalf("Failed to restore session: %v", err)
	}
	if branchID := manager.ActiveBranch(ctx); branchID != "" {
		floor.SetBranch(branchID)
		if err := floor.Refresh(ctx); err != nil {
			utils.ErrorLogger.Printf("Initial floor load failed: %v", err)
		}
	}

	go superviseStream(ctx, cfg.WSBaseURL, manager, floor)

	poller := services.NewTablePoller(floor, cfg.PollInterval)
	poller.Start(ctx)
	defer poller.Stop()

	r := router.SetupRouter(router.Dependencies{
		Manager:           manager,
		Auth:              auth,
		Floor:             floor,
		Hub:               hub,
		CORSOrigin:        cfg.CORSOrigin,
		LoginBurst:        cfg.LoginBurst,
		LoginEvery:        cfg.LoginEvery,
		RequestsPerMinute: cfg.RequestsPerMinute,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		utils.InfoLogger.Printf("Floor console listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Printf("Shutdown: %v", err)
	}
	utils.InfoLogger.Println("Floor console stopped")
}

// openStore picks the durable client storage for STORAGE_DRIVER.
func openStore(cfg config.Config) (storage.Store, func(), error) {
	switch cfg.StorageDriver {
	case "memory":
		return storage.NewMemoryStore(), func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, nil, err
		}
		return storage.NewRedisStore(rdb, "floor:"), func() { rdb.Close() }, nil
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewGormStore(db), func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}, nil
}

// superviseStream keeps one event stream open for the floor's current
// branch and follows branch switches.
func superviseStream(ctx context.Context, wsBase string, tokens events.TokenSource, floor *reconciler.Reconciler) {
	var (
		current string
		cancel  context.CancelFunc = func() {}
	)
	defer func() { cancel() }()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		if branchID := floor.Branch(); branchID != current {
			cancel()
			current = branchID
			cancel = func() {}
			if branchID != "" {
				streamCtx, streamCancel := context.WithCancel(ctx)
				cancel = streamCancel
				stream := events.NewStream(wsBase, branchID, tokens, func(evt models.Event) {
					floor.ApplyEvent(streamCtx, evt)
				})
				go stream.Run(streamCtx)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
