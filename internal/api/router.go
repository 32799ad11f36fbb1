package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/credobot/credo/internal/api/handlers"
	mw "github.com/credobot/credo/internal/api/middleware"
	"github.com/credobot/credo/internal/buildconfig"
	"github.com/credobot/credo/internal/config"
	"github.com/credobot/credo/internal/domain"
	"github.com/credobot/credo/internal/embedding"
	"github.com/credobot/credo/internal/llm"
	"github.com/credobot/credo/internal/reddit"
	"github.com/credobot/credo/internal/service"
	"github.com/credobot/credo/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router   *chi.Mux
	Agent    *service.AgentService
	Episodic *service.EpisodicIndex

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	personaStore := store.NewPersonaStore(db)
	beliefStore := store.NewBeliefStore(db)
	interactionStore := store.NewInteractionStore(db)
	draftStore := store.NewDraftStore(db)

	// External clients via provider factories. A misconfigured provider falls
	// back to its mock so the dashboard still serves; the warning is the signal.
	llmClient, err := llm.NewClient(config.LLMProvider(), config.OpenAIAPIKey())
	if err != nil {
		logger.Warn("LLM client initialization failed, using mock", zap.String("provider", config.LLMProvider()), zap.Error(err))
		llmClient = llm.NewMockClient()
	} else {
		logger.Info("LLM client initialized", zap.String("provider", config.LLMProvider()))
	}

	embeddingClient, err := embedding.NewClient(config.EmbeddingProvider(), config.OpenAIAPIKey())
	if err != nil {
		logger.Warn("embedding client initialization failed, using mock", zap.String("provider", config.EmbeddingProvider()), zap.Error(err))
		embeddingClient = embedding.NewMockClient()
	} else {
		logger.Info("embedding client initialized", zap.String("provider", config.EmbeddingProvider()))
	}

	redditClient, err := reddit.NewClient(config.RedditProvider(), config.RedditCredentials())
	if err != nil {
		logger.Warn("reddit client initialization failed, using mock", zap.String("provider", config.RedditProvider()), zap.Error(err))
		redditClient = reddit.NewMockClient()
	} else {
		logger.Info("reddit client initialized", zap.String("provider", config.RedditProvider()))
	}

	// Services
	episodicSvc := service.NewEpisodicIndex(interactionStore, embeddingClient, logger)
	confidenceSvc := service.NewConfidenceUpdater(beliefStore, logger)
	retrievalSvc := service.NewRetrievalCoordinator(personaStore, beliefStore, episodicSvc, logger)
	gate := service.NewModerationGate(llmClient, beliefStore, confidenceSvc, logger)
	personaSvc := service.NewPersonaService(personaStore, logger)
	beliefSvc := service.NewBeliefService(beliefStore, personaStore, logger)
	agentSvc := service.NewAgentService(personaStore, draftStore, redditClient, llmClient, retrievalSvc, gate, episodicSvc, logger)
	agentSvc.SetInterval(config.AgentPollInterval())
	agentSvc.SetTokenBudget(config.ContextTokenBudget())

	// Handlers
	personaHandler := handlers.NewPersonaHandler(personaSvc)
	beliefHandler := handlers.NewBeliefHandler(beliefSvc, confidenceSvc)
	draftHandler := handlers.NewDraftHandler(draftStore, agentSvc)
	contextHandler := handlers.NewContextHandler(retrievalSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Agent:     agentSvc,
		Episodic:  episodicSvc,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mw.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health and metrics (no auth)
	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	// Dashboard API
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.DashboardAuth(config.DashboardTokenHash()))

		r.Route("/personas", func(r chi.Router) {
			r.Post("/", personaHandler.Create)
			r.Get("/", personaHandler.List)
			r.Route("/{personaID}", func(r chi.Router) {
				r.Get("/", personaHandler.GetByID)
				r.Put("/config", personaHandler.UpdateConfig)
				r.Delete("/", personaHandler.Delete)

				r.Get("/graph", beliefHandler.GetGraph)
				r.Post("/context", contextHandler.Preview)

				r.Route("/beliefs", func(r chi.Router) {
					r.Post("/", beliefHandler.Create)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", beliefHandler.GetByID)
						r.Get("/history", beliefHandler.GetHistory)
						r.Put("/confidence", beliefHandler.UpdateConfidence)
						r.Post("/nudge", beliefHandler.Nudge)
						r.Put("/lock", beliefHandler.SetLock)
						r.Post("/evidence", beliefHandler.AddEvidence)
						r.Get("/evidence", beliefHandler.ListEvidence)
					})
				})

				r.Route("/drafts", func(r chi.Router) {
					r.Get("/", draftHandler.List)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", draftHandler.GetByID)
						r.Post("/publish", draftHandler.Publish)
						r.Post("/reject", draftHandler.Reject)
					})
				})
			})
		})

		// Edges carry their persona through the endpoint nodes.
		r.Post("/edges", beliefHandler.CreateEdge)
	})

	return app
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"build":      buildconfig.VersionInfo(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.PersonaStore     = (*store.PersonaStore)(nil)
	_ domain.BeliefStore      = (*store.BeliefStore)(nil)
	_ domain.InteractionStore = (*store.InteractionStore)(nil)
	_ domain.DraftStore       = (*store.DraftStore)(nil)
	_ domain.EmbeddingClient  = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient  = (*embedding.MockClient)(nil)
	_ domain.LLMClient        = (*llm.OpenAIClient)(nil)
	_ domain.LLMClient        = (*llm.MockClient)(nil)
	_ domain.RedditClient     = (*reddit.ScriptClient)(nil)
	_ domain.RedditClient     = (*reddit.MockClient)(nil)
)
