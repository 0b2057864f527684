package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"rangeday-service/internal/app"
	"rangeday-service/internal/config"
	"rangeday-service/internal/domain"
	"rangeday-service/internal/infra/memory"
	pgstore "rangeday-service/internal/infra/postgres"
	redisinfra "rangeday-service/internal/infra/redis"
	"rangeday-service/internal/stats"
	transport "rangeday-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.TTLDuration(cfg.Sessions.TTL, 2*time.Hour)
	questionTTL := config.TTLDuration(cfg.Questions.TTL, time.Hour)

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions(), cfg.PerDay())
	var responseLog interface {
		app.ResponseAppender
		stats.ResponseLog
	} = memory.NewResponseLog()
	var aggregates interface {
		app.AggregateStore
		stats.AggregateReader
	} = memory.NewAggregateStore()

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgstore.NewQuestionLoader(pool, cfg.PerDay())

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()
		responseLog = pgstore.NewResponseLog(db)
		aggregates = pgstore.NewAggregateStore(db)
	}

	var questions app.QuestionRepository
	if redisClient != nil {
		questions = redisinfra.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, questionTTL)
	}

	var sessions app.SessionStore
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, sessionTTL)
	} else {
		memSessions := memory.NewSessionStore(sessionTTL)
		defer memSessions.Close()
		sessions = memSessions
	}

	aggregator := stats.NewAggregator(responseLog, aggregates)
	feed := app.NewFeed()
	service := app.NewGameService(sessions, questions, responseLog, aggregates, aggregator, feed, logger)

	handler := transport.NewHandler(service, logger)
	wsHandler := transport.NewWSHandler(feed, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/leaderboard", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting game service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions seeds the no-database demo mode; production loads the
// bank from Postgres.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:     "everest-height",
			Prompt: "How tall is Mount Everest?",
			Unit:   "meters",
			Answer: 8849,
			Source: "National Geographic, 2020 survey",
		},
		{
			ID:     "moon-distance",
			Prompt: "What is the average distance from Earth to the Moon?",
			Unit:   "kilometers",
			Answer: 384400,
			Source: "NASA",
		},
		{
			ID:     "amazon-length",
			Prompt: "How long is the Amazon River?",
			Unit:   "kilometers",
			Answer: 6400,
			Source: "Encyclopaedia Britannica",
		},
		{
			ID:     "eiffel-height",
			Prompt: "How tall is the Eiffel Tower?",
			Unit:   "meters",
			Answer: 330,
			Source: "tour-eiffel.paris",
		},
		{
			ID:     "pacific-depth",
			Prompt: "How deep is the Mariana Trench at its deepest point?",
			Unit:   "meters",
			Answer: 10935,
			Source: "NOAA",
		},
	}
}
