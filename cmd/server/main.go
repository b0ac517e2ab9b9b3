package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/movie-booking/internal/config"
	"github.com/iliyamo/movie-booking/internal/database"
	"github.com/iliyamo/movie-booking/internal/handler"
	"github.com/iliyamo/movie-booking/internal/logger"
	"github.com/iliyamo/movie-booking/internal/middleware"
	"github.com/iliyamo/movie-booking/internal/queue"
	"github.com/iliyamo/movie-booking/internal/realtime"
	"github.com/iliyamo/movie-booking/internal/repository"
	"github.com/iliyamo/movie-booking/internal/router"
	"github.com/iliyamo/movie-booking/internal/seatlock"
	"github.com/iliyamo/movie-booking/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg := logger.Must(cfg.Env)
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		lg.Fatal("migrate database", zap.Error(err))
	}

	// Redis is optional: without it rate limiting and caching are off.
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		lg.Warn("redis unavailable, rate limiting and cache disabled", zap.Error(err))
	} else {
		defer rdb.Close()
	}

	showtimeSeats := repository.NewShowtimeSeatRepo(db)
	coord := seatlock.NewCoordinator(
		seatlock.NewLockTable(),
		seatlock.NewSessionTracker(),
		seatlock.NewRouter(),
		service.NewSeatRegistry(showtimeSeats),
		seatlock.WithLockTTL(cfg.SeatLock.TTL),
		seatlock.WithSweepInterval(cfg.SeatLock.SweepInterval),
		seatlock.WithLogger(lg),
	)

	var publisher service.EventPublisher = service.NopPublisher{}
	if cfg.RabbitURL != "" {
		amqpPub := service.NewAMQPPublisher(cfg.RabbitURL, lg)
		defer amqpPub.Close()
		publisher = amqpPub
	} else {
		lg.Info("RABBITMQ_URL not set, booking events are not published")
	}

	finalizer := service.NewBookingFinalizer(db, coord, publisher, lg)
	hub := realtime.NewHub(coord, cfg.JWTSecret, cfg.Realtime, lg)

	authH := handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), lg)
	movieH := handler.NewMovieHandler(repository.NewMovieRepo(db), lg)
	theatreH := handler.NewTheatreHandler(repository.NewTheatreRepo(db), lg)
	showtimeH := handler.NewShowtimeHandler(repository.NewShowtimeRepo(db), coord, lg)
	bookingH := handler.NewBookingHandler(finalizer, repository.NewBookingRepo(db), lg)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(lg))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, lg)

	router.RegisterRoutes(e, handler.Health{DB: db, Connections: hub.Connections})
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, movieH, theatreH, showtimeH, cache)
	router.RegisterCustomer(e, bookingH, cfg.JWTSecret)
	router.RegisterAdmin(e, authH, movieH, theatreH, showtimeH, cfg.JWTSecret)
	router.RegisterRealtime(e, hub)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coord.Run(gctx) })
	if cfg.RabbitURL != "" {
		consumer := queue.NewConsumer(cfg.RabbitURL, cfg.BookingLogPath, lg)
		g.Go(func() error { return consumer.Run(gctx) })
	}
	g.Go(func() error {
		addr := ":" + cfg.Port
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")
		hub.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("server stopped", zap.Error(err))
	}
}
