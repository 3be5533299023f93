package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/draftflow/internal/core"
	"github.com/Chative-core-poc-v1/draftflow/internal/core/metrics"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/engine"
	"github.com/Chative-core-poc-v1/draftflow/internal/draft/envelope"
	"github.com/Chative-core-poc-v1/draftflow/internal/flows/appointment"
	"github.com/Chative-core-poc-v1/draftflow/internal/flows/expense"
	"github.com/Chative-core-poc-v1/draftflow/internal/intent"
	"github.com/Chative-core-poc-v1/draftflow/internal/narrator"
	"github.com/Chative-core-poc-v1/draftflow/internal/rest"
	"github.com/Chative-core-poc-v1/draftflow/internal/session"
	"github.com/Chative-core-poc-v1/draftflow/internal/usercontext"
	logx "github.com/Chative-core-poc-v1/draftflow/pkg/logger"
	pkgredis "github.com/Chative-core-poc-v1/draftflow/pkg/redis"
)

// AppConfig defines all configurable parameters of the draft service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	// Infrastructure
	Redis         pkgredis.Config
	CacheCapacity int `envconfig:"SESSION_CACHE_CAPACITY" default:"10000"`
	API           rest.Config

	// Draft engine
	UserContext  usercontext.Config
	Envelope     envelope.Config
	Intent       intent.Config
	Summary      narrator.Config
	Autocomplete bool `envconfig:"AUTOCOMPLETE_ENABLED" default:"true"`

	// Scripted demo
	DemoPhone  string `envconfig:"DEMO_PHONE" default:"5500000000000"`
	DemoSubmit bool   `envconfig:"DEMO_SUBMIT" default:"false"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment), Level: cfg.LogLevel})

	m := metrics.Default()
	kv := session.NewRedisStore(func(ctx context.Context) (goredis.UniversalClient, error) {
		client, err := cfg.Redis.Dial(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil
	}, session.NewMemoryStore(cfg.CacheCapacity),
		session.WithRetryAfter(core.Seconds(cfg.Redis.RetryAfter, 30*time.Second)),
		session.WithMetrics(m),
	)
	defer kv.Close()

	api := rest.New(cfg.API)
	users := usercontext.New(kv, cfg.UserContext, api, api.BaseURL())

	var rewriter narrator.Rewriter
	if cfg.Summary.Enabled() {
		chatModel, err := narrator.NewGeminiModel(ctx, cfg.Summary)
		if err != nil {
			logx.Warn().Err(err).Msg("natural summaries disabled")
		} else {
			rewriter = narrator.NewChatRewriter(chatModel,
				narrator.WithModelName(cfg.Summary.Model),
				narrator.WithCallbacks(narrator.NewCallbacks()),
			)
		}
	}

	deps := engine.Deps{
		Store:    kv,
		Envelope: cfg.Envelope,
		Users:    users,
		API:      api,
		BaseURL:  api.BaseURL(),
		Rewriter: rewriter,
		Metrics:  m,
	}
	expenses, err := expense.NewService(deps, cfg.Autocomplete)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build expense flow")
	}
	appointments, err := appointment.NewService(deps, cfg.Autocomplete)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build appointment flow")
	}
	history := intent.NewHistory(kv, cfg.Intent)
	tracker := intent.NewTracker(kv, history, cfg.Intent)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	logx.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint listening")

	if err := runDemo(ctx, cfg, users, tracker, history, expenses, appointments); err != nil {
		logx.Error().Err(err).Msg("demo conversation failed")
	}

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdown)
}

// runDemo walks one user through an expense draft and then switches to an
// appointment, showing how the intent switch clears conversational memory.
func runDemo(
	ctx context.Context,
	cfg AppConfig,
	users *usercontext.Store,
	tracker *intent.Tracker,
	history *intent.History,
	expenses *expense.Service,
	appointments *appointment.Service,
) error {
	phone := cfg.DemoPhone
	users.EnsureSession(ctx, phone)
	fmt.Println("Starting scripted draft conversation...")

	tracker.TrackChange(ctx, phone, expense.FlowType)
	supplier := "Agro Insumos Ltda"
	d, err := expenses.UpdateDraft(ctx, phone, expense.Upsert{Supplier: &supplier})
	if err != nil {
		return fmt.Errorf("expense supplier: %w", err)
	}
	fmt.Printf("Missing fields: %v\n", expenses.HasMissingFields(d))
	fmt.Println(expenses.BuildDraftSummaryNatural(ctx, d, phone, narrator.Short))

	if _, _, err := expenses.UpdateDraftFields(ctx, phone, map[string]any{"value": "1.250,00"}); err != nil {
		return fmt.Errorf("expense value: %w", err)
	}
	areas, err := expenses.FetchSelectionList(ctx, phone, expense.ListBusinessAreas, engine.Path("/business-areas"))
	if err != nil {
		fmt.Println(err)
	} else if len(areas) > 0 {
		if _, err := expenses.UpdateDraftField(ctx, phone, "businessArea", areas[0]); err != nil {
			return fmt.Errorf("expense area: %w", err)
		}
	}

	d = expenses.LoadDraft(ctx, phone)
	fmt.Println(expenses.BuildDraftSummary(d))
	if missing := expenses.HasMissingFields(d); len(missing) > 0 {
		fmt.Printf("Still missing: %v\n", missing)
	} else if _, err := expenses.Transition(ctx, phone, draft.EventRequestConfirmation); err != nil {
		return err
	}

	if cfg.DemoSubmit && len(expenses.HasMissingFields(d)) == 0 {
		if _, err := expenses.Transition(ctx, phone, draft.EventConfirm); err != nil {
			return err
		}
		res, err := expenses.Create(ctx, phone, d)
		if err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		fmt.Printf("Expense created: %s\n", res.ID)
		if _, err := expenses.Transition(ctx, phone, draft.EventComplete); err != nil {
			return err
		}
		expenses.ClearDraft(ctx, phone)
	}

	if tracker.TrackChange(ctx, phone, appointment.FlowType) {
		fmt.Println("Intent changed, previous conversational history cleared")
	}
	date, clock := "20/01/2025", "14h"
	ad, err := appointments.UpdateDraft(ctx, phone, appointment.Upsert{AppointmentDate: &date, AppointmentTime: &clock})
	if err != nil {
		return fmt.Errorf("appointment date: %w", err)
	}
	msg := schema.UserMessage("quero marcar um corte dia 20/01 às 14h")
	history.Append(ctx, phone, appointment.FlowType, msg)
	if err := appointments.AppendHistoryToDraft(ctx, phone, msg); err != nil {
		return err
	}
	fmt.Println(appointments.BuildDraftSummary(ad))
	fmt.Printf("Missing fields: %v\n", appointments.HasMissingFields(ad))
	return nil
}
