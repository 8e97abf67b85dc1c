package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"invoice-ai-extraction/internal/usecase"
)

// RateLimiter gates requests per client key inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Server exposes the ingestion pipeline over HTTP.
type Server struct {
	ingest   *usecase.IngestUseCase
	query    *usecase.QueryUseCase
	synonyms *usecase.SynonymUseCase
	pub      *usecase.ResultPublisher

	limiter    RateLimiter
	chatLimit  int
	chatWindow time.Duration

	log *zerolog.Logger
}

func NewServer(
	ingest *usecase.IngestUseCase,
	query *usecase.QueryUseCase,
	synonyms *usecase.SynonymUseCase,
	pub *usecase.ResultPublisher,
	limiter RateLimiter,
	chatLimit int,
	chatWindow time.Duration,
	log *zerolog.Logger,
) *Server {
	return &Server{
		ingest:     ingest,
		query:      query,
		synonyms:   synonyms,
		pub:        pub,
		limiter:    limiter,
		chatLimit:  chatLimit,
		chatWindow: chatWindow,
		log:        log,
	}
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Get("/status/{jobID}", s.handleStatus)
		r.Get("/results/{jobID}", s.handleResults)
		r.Get("/stream/{jobID}", s.handleStream)
		r.Post("/chat", s.handleChat)
		r.Get("/chat/{jobID}", s.handleChatHistory)
		r.Get("/jobs", s.handleListJobs)

		r.Get("/synonyms", s.handleListSynonyms)
		r.Post("/synonyms", s.handleCreateSynonym)
		r.Put("/synonyms/{id}", s.handleUpdateSynonym)
		r.Delete("/synonyms/{id}", s.handleDeleteSynonym)
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
