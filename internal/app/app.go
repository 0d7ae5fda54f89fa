// File: internal/app/app.go
package app

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/iyunix/go-rigadvisor/internal/config"
	"github.com/iyunix/go-rigadvisor/internal/domain"
	"github.com/iyunix/go-rigadvisor/internal/faq"
	"github.com/iyunix/go-rigadvisor/internal/handlers"
	"github.com/iyunix/go-rigadvisor/internal/metrics"
	"github.com/iyunix/go-rigadvisor/internal/middleware"
	"github.com/iyunix/go-rigadvisor/internal/presenter"
	"github.com/iyunix/go-rigadvisor/internal/ratelimit"
	"github.com/iyunix/go-rigadvisor/internal/repository"
	"github.com/iyunix/go-rigadvisor/internal/repository/attempt"
	"github.com/iyunix/go-rigadvisor/internal/services"
	"github.com/iyunix/go-rigadvisor/internal/services/suggestion"
	"github.com/iyunix/go-rigadvisor/internal/services/transport"
)

// Application aggregates all services and handlers
type Application struct {
	Config  *config.Config
	Logger  services.Logger
	DB      *gorm.DB
	Catalog *domain.Catalog
	Metrics *metrics.Recorder

	AttemptRepo       attempt.AttemptRepository
	AttemptPruner     *attempt.Pruner
	Backend           suggestion.Backend
	SuggestionService *suggestion.Service
	Board             *presenter.Board
	Accordion         *faq.Accordion
	TriggerLimiter    *ratelimit.MemoryRateLimiter

	SuggestionHandler  *handlers.SuggestionHandler
	FAQHandler         *handlers.FAQHandler
	DiagnosticsHandler *handlers.DiagnosticsHandler
	LogHandler         *handlers.LogHandler
}

// Option adjusts how the application is assembled.
type Option func(*options)

type options struct {
	transportOpts []transport.Option
	retrierOpts   []transport.RetrierOption
}

// WithTransportOptions is passed to the Gemini transport.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(o *options) {
		o.transportOpts = append(o.transportOpts, opts...)
	}
}

// WithRetrierOptions is passed to whichever backend is selected.
func WithRetrierOptions(opts ...transport.RetrierOption) Option {
	return func(o *options) {
		o.retrierOpts = append(o.retrierOpts, opts...)
	}
}

// ProvideBackend builds the backend selected by LLM_PROVIDER. Every attempt is reported to observers.
func ProvideBackend(cfg *config.Config, logger services.Logger, observers []transport.Observer, opts ...Option) (suggestion.Backend, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		backend, err := suggestion.NewOpenAIBackend(&cfg.OpenAI, logger, observers, o.retrierOpts...)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case config.ProviderGemini:
		topts := append([]transport.Option{}, o.transportOpts...)
		if len(o.retrierOpts) > 0 {
			topts = append(topts, transport.WithRetrierOptions(o.retrierOpts...))
		}
		for _, obs := range observers {
			topts = append(topts, transport.WithObserver(obs))
		}
		tr, err := transport.NewRetryingTransport(&cfg.Gemini, logger, topts...)
		if err != nil {
			return nil, err
		}
		return suggestion.NewGeminiBackend(tr), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// ProvideAccordion loads and renders the FAQ.
func ProvideAccordion(cfg *config.Config) (*faq.Accordion, error) {
	items, err := faq.Load(cfg.FAQFile)
	if err != nil {
		return nil, err
	}
	rendered, err := faq.Render(items)
	if err != nil {
		return nil, err
	}
	return faq.NewAccordion(rendered), nil
}

// journalSweeps is how many pruning sweeps run per retention window.
const journalSweeps = 4

// New assembles the application. Close releases what it opened.
func New(cfg *config.Config, logger services.Logger, opts ...Option) (*Application, error) {
	catalog, err := config.LoadCatalog(cfg.PlansFile)
	if err != nil {
		return nil, err
	}

	db, err := repository.Open(cfg.AttemptDSN)
	if err != nil {
		return nil, err
	}
	attemptRepo := attempt.NewGormAttemptRepository(db)
	recorder := metrics.NewRecorder()

	observers := []transport.Observer{recorder, attempt.NewJournal(attemptRepo, logger)}
	backend, err := ProvideBackend(cfg, logger, observers, opts...)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	accordion, err := ProvideAccordion(cfg)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	svc := suggestion.NewService(catalog, backend, logger, suggestion.WithObserver(recorder))
	board := presenter.NewBoard(svc, catalog.IDs(), logger, presenter.WithFallbackMessage(catalog.FallbackMessage()))

	return &Application{
		Config:             cfg,
		Logger:             logger,
		DB:                 db,
		Catalog:            catalog,
		Metrics:            recorder,
		AttemptRepo:        attemptRepo,
		AttemptPruner:      attempt.NewPruner(attemptRepo, logger, cfg.AttemptRetention, cfg.AttemptRetention/journalSweeps),
		Backend:            backend,
		SuggestionService:  svc,
		Board:              board,
		Accordion:          accordion,
		TriggerLimiter:     ratelimit.NewMemoryRateLimiter(ratelimit.DefaultTriggerConfig(cfg.RateLimitMax, cfg.RateLimitWindow)),
		SuggestionHandler:  handlers.NewSuggestionHandler(board, catalog, logger),
		FAQHandler:         handlers.NewFAQHandler(accordion),
		DiagnosticsHandler: handlers.NewDiagnosticsHandler(attemptRepo, logger),
		LogHandler:         handlers.NewLogHandler(logger),
	}, nil
}

// Router wires every route and middleware.
func (a *Application) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RecoverPanic(a.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.LoggingMiddleware(a.Logger))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")
	r.Handle("/metrics", a.Metrics.Handler()).Methods("GET")
	r.HandleFunc("/api/log", a.LogHandler.LogFrontendEvent).Methods("POST")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/plans", a.SuggestionHandler.ListPlans).Methods("GET")
	api.HandleFunc("/plans/{plan}/state", a.SuggestionHandler.GetState).Methods("GET")
	api.HandleFunc("/plans/{plan}/events", a.SuggestionHandler.StreamEvents).Methods("GET")
	api.HandleFunc("/faq", a.FAQHandler.List).Methods("GET")
	api.HandleFunc("/faq/{id}/toggle", a.FAQHandler.Toggle).Methods("POST")
	api.HandleFunc("/diagnostics/attempts", a.DiagnosticsHandler.ListAttempts).Methods("GET")

	limit := middleware.RateLimitMiddleware(a.TriggerLimiter, "suggestion", a.Logger)
	api.Handle("/plans/{plan}/suggestion", limit(http.HandlerFunc(a.SuggestionHandler.TriggerSuggestion))).Methods("POST")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	// Preflight requests match no route, so CORS wraps the router instead of joining r.Use.
	return middleware.CORS(a.Config.CORSOrigins)(r)
}

func (a *Application) Close() {
	a.TriggerLimiter.Close()
	a.AttemptPruner.Close()
	closeDB(a.DB)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
