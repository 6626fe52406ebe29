package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/application"
	"github.com/cristianortiz/farmbid/internal/auction/events"
	infrahttp "github.com/cristianortiz/farmbid/internal/auction/infra/http"
	"github.com/cristianortiz/farmbid/internal/auction/infra/repository/postgres"
	infraws "github.com/cristianortiz/farmbid/internal/auction/infra/websocket"
	"github.com/cristianortiz/farmbid/internal/auction/lifecycle"
	"github.com/cristianortiz/farmbid/internal/shared/db"
	"github.com/cristianortiz/farmbid/internal/shared/db/migrations"
	"github.com/cristianortiz/farmbid/internal/shared/httpserver"
	"github.com/cristianortiz/farmbid/internal/shared/logger"
	sharedws "github.com/cristianortiz/farmbid/internal/shared/websocket"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func main() {
	log := logger.GetLogger()
	defer log.Sync()
	_ = godotenv.Load()

	log.Info("starting FarmBid auction server...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migrations.RunMigrations(); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}

	pool, err := db.GetPostgresDBPool(ctx)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	clock := clockwork.NewRealClock()
	store := postgres.NewAuctionStore(pool)
	hub := sharedws.NewHub()

	//the gateway and the use cases reference each other through the
	//notifier, so the composite starts empty and gets its targets below
	notifier := application.NewCompositeNotifier()
	scheduler := lifecycle.NewScheduler(store, notifier, clock)
	defer scheduler.Shutdown()

	service := application.NewAuctionService(
		application.NewCreateAuctionUseCase(store, scheduler, notifier),
		application.NewPlaceBidUseCase(store, notifier, clock),
		application.NewCancelAuctionUseCase(store, scheduler, notifier),
		application.NewUpdateScheduleUseCase(store, scheduler),
		application.NewGetAuctionUseCase(store),
	)

	gateway := infraws.NewGateway(ctx, service, hub, clock)
	notifier.Add(gateway)

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		nc, err := nats.Connect(natsURL, nats.Name("farmbid-auction-server"))
		if err != nil {
			log.Fatal("NATS connection failed", zap.Error(err))
		}
		defer nc.Drain()
		notifier.Add(events.NewPublisher(nc))
		log.Info("auction event publishing enabled", zap.String("natsURL", natsURL))
	}

	go gateway.Run()

	//re-arm timers for every auction that survived a restart before
	//accepting traffic; overdue transitions fire immediately
	if err := scheduler.Resync(ctx); err != nil {
		log.Fatal("scheduler resync failed", zap.Error(err))
	}

	sweeper := lifecycle.NewSweeper(store, notifier, clock, sweepPeriod())
	go sweeper.Run(ctx)

	server := httpserver.NewServer()
	infrahttp.NewAuctionHandler(service, clock).Register(server.App().Group("/api"))
	server.App().Use("/ws", infraws.UpgradeGuard())
	server.App().Get("/ws/auctions/:id", gateway.Route())

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":9000"
	}
	if err := server.Start(ctx, addr); err != nil {
		log.Fatal("HTTP server failed", zap.Error(err))
	}
}

func sweepPeriod() time.Duration {
	raw := os.Getenv("SWEEP_PERIOD_SECONDS")
	if raw == "" {
		return lifecycle.DefaultSweepPeriod
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return lifecycle.DefaultSweepPeriod
	}
	return time.Duration(secs) * time.Second
}
