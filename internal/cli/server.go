package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/config"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/apiclient"
	"quiz-session-service/internal/infra/memory"
	pgstore "quiz-session-service/internal/infra/postgres"
	redisstore "quiz-session-service/internal/infra/redis"
	"quiz-session-service/internal/jobs"
	transport "quiz-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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
	sessionTTL := config.TTLDuration(cfg.Quiz.SessionTTL, 2*time.Hour)
	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var (
		source   app.QuestionSource
		attempts app.AttemptService
	)
	switch {
	case pool != nil:
		pgSource := pgstore.NewQuestionSource(pool)
		source = pgSource
		attempts = pgstore.NewAttemptStore(pool, pgSource)
	case cfg.API.BaseURL != "":
		client := apiclient.New(cfg.API.BaseURL, config.TTLDuration(cfg.API.Timeout, 10*time.Second))
		source = client
		attempts = client
	default:
		log.Printf("no postgres or api backend configured, serving built-in demo quizzes")
		sets := demoQuizzes()
		source = memory.NewStaticQuestionSource(sets)
		attempts = memory.NewAttemptStore(func(_ context.Context, quizID string) ([]domain.Question, error) {
			for _, set := range sets {
				if set.Quiz.ID == quizID {
					return set.Questions, nil
				}
			}
			return nil, domain.ErrQuizNotFound
		})
	}
	source = memory.NewCachingQuestionSource(source, cacheTTL)

	var store app.SessionStateStore
	var attemptCache app.AttemptCache
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, sessionTTL)
		attemptCache = redisstore.NewAttemptCache(redisClient, sessionTTL)
	} else {
		store = memory.NewSessionStore()
		attemptCache = memory.NewAttemptCache()
	}

	var opts []app.Option
	if cfg.Quiz.Fallback {
		opts = append(opts, app.WithFallbackSource(memory.NewFallbackQuestionSource()))
	}
	engine := app.NewEngine(store, source, attempts, attemptCache, opts...)

	janitor := jobs.NewJanitor(engine,
		config.TTLDuration(cfg.Quiz.SweepInterval, 5*time.Minute),
		config.TTLDuration(cfg.Quiz.IdleTimeout, 30*time.Minute),
	)
	janitor.Start()
	defer janitor.Stop()

	wsHandler := transport.NewWSHandler(engine)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// demoQuizzes seeds the no-backend mode with a small timed quiz.
func demoQuizzes() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"demo:001": {
			Quiz: domain.QuizInfo{
				ID:               "demo-quiz-1",
				SubjectCode:      "demo",
				ExamCode:         "001",
				Title:            "Demo general knowledge quiz",
				TimeLimitMinutes: 5,
				Author:           "system",
			},
			Source: domain.SourceLive,
			Questions: []domain.Question{
				{
					ID:      "q1",
					Text:    "What is 2 + 2?",
					Answers: []string{"3", "4", "5"},
					Correct: domain.SingleAnswer("4"),
					Points:  domain.DefaultQuestionPoints,
				},
				{
					ID:      "q2",
					Text:    "Which of these are even numbers?",
					Answers: []string{"1", "2", "3", "6"},
					Correct: domain.MultipleAnswer("2", "6"),
					Points:  domain.DefaultQuestionPoints,
				},
			},
		},
	}
}
