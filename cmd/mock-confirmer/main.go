package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/segmentio/kafka-go"

	"github.com/josh-kwaku/custody-ledger/internal/handler"
	"github.com/josh-kwaku/custody-ledger/internal/logging"
)

type settings struct {
	KafkaBrokers   []string      `env:"KAFKA_BROKERS,required" envSeparator:","`
	ApprovalTopic  string        `env:"KAFKA_APPROVAL_TOPIC" envDefault:"ledger.approvals"`
	GroupID        string        `env:"MOCK_GROUP_ID" envDefault:"mock-confirmer"`
	CallbackURL    string        `env:"DECISION_CALLBACK_URL" envDefault:"http://localhost:8080/api/v1/decisions"`
	DecisionSecret string        `env:"DECISION_SECRET,required"`
	Decision       string        `env:"MOCK_DECISION" envDefault:"accept"`
	Delay          time.Duration `env:"MOCK_DELAY" envDefault:"1s"`
	Port           int           `env:"PORT" envDefault:"8081"`
	AppEnv         string        `env:"APP_ENV" envDefault:"development"`
}

func main() {
	cfg, err := env.ParseAs[settings]()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Init("mock-confirmer", "info", cfg.AppEnv)
	defer logger.Sync()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.ApprovalTopic,
	})
	defer reader.Close()

	c := &confirmer{
		reader:   reader,
		client:   &http.Client{Timeout: 10 * time.Second},
		url:      cfg.CallbackURL,
		secret:   cfg.DecisionSecret,
		decision: cfg.Decision,
		delay:    cfg.Delay,
		log:      log,
		now:      time.Now,
	}
	go c.run(ctx)

	r := http.NewServeMux()
	r.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infow("mock confirmer started", "addr", srv.Addr, "decision", cfg.Decision)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorw("server error", "error", err)
		os.Exit(1)
	}
}
