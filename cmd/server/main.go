package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/parkiq/parkiq-server/internal/config"
	"github.com/parkiq/parkiq-server/internal/database"
	"github.com/parkiq/parkiq-server/internal/engine"
	"github.com/parkiq/parkiq-server/internal/handler"
	"github.com/parkiq/parkiq-server/internal/queue"
	"github.com/parkiq/parkiq-server/internal/repository"
	"github.com/parkiq/parkiq-server/internal/router"
	"github.com/parkiq/parkiq-server/internal/service/notifier"
)

func main() {
	// Load .env if present; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("schema setup failed: %v", err)
	}

	spots := repository.NewSpotRepo(db)
	bookings := repository.NewBookingRepo(db)
	users := repository.NewUserRepo(db)
	settings := repository.NewSettingsRepo(db)
	audit := repository.NewAuditRepo(db)

	coord := engine.NewCoordinator(spots, bookings, users, settings, audit, notifier.New(), engine.Rules{
		GraceMinutes:     cfg.GraceMinutes,
		OfferMinutes:     cfg.OfferMinutes,
		ExtensionMinutes: cfg.ExtensionMinutes,
		MiddayMaxHours:   cfg.MiddayMaxHours,
	})

	if err := coord.Seed(ctx); err != nil {
		log.Fatalf("seeding spots failed: %v", err)
	}

	// Recovery must finish before the server takes traffic: persisted
	// deadlines that elapsed while the process was down are settled here,
	// and live ones get their timers re-armed.
	if err := coord.Recover(ctx); err != nil {
		log.Fatalf("deadline recovery failed: %v", err)
	}

	go func() {
		if err := queue.StartStateConsumer(); err != nil {
			log.Printf("state consumer stopped: %v", err)
		}
	}()

	go runDailyReset(coord)

	e := echo.New()
	e.HideBanner = true

	parking := handler.NewParkingHandler(coord)
	admin := handler.NewAdminHandler(coord, cfg.BcryptCost)

	rdb := config.NewRedisClient()
	rl := config.LoadRateLimitConfig()

	router.RegisterRoutes(e, parking)
	router.RegisterParking(e, parking, cfg.JWTSecret, rl, rdb)
	router.RegisterAdmin(e, admin, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// runDailyReset fires the end-of-day sweep once per calendar day.  A minute
// tick with a last-run marker survives clock drift and long GC pauses
// better than computing a single sleep until midnight.
func runDailyReset(coord *engine.Coordinator) {
	lastRun := time.Now().Format("2006-01-02")
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for now := range ticker.C {
		day := now.Format("2006-01-02")
		if day == lastRun {
			continue
		}
		lastRun = day
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if err := coord.DailyReset(ctx); err != nil {
			log.Printf("daily reset failed: %v", err)
		}
		cancel()
	}
}
