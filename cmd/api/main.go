// Command api serves the dialect dictionary search endpoint. A question is
// embedded, grounded against the lexicon collection, and answered by the
// generation model.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/puxianlab/pxlex/engine/domain"
	"github.com/puxianlab/pxlex/engine/llm"
	"github.com/puxianlab/pxlex/engine/rag"
	"github.com/puxianlab/pxlex/engine/semantic"
	"github.com/puxianlab/pxlex/pkg/config"
	"github.com/puxianlab/pxlex/pkg/metrics"
	"github.com/puxianlab/pxlex/pkg/mid"
)

func main() {
	configPath := flag.String("config", "config/local.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := semantic.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection, cfg.Qdrant.VectorSize)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	embedder := llm.NewEmbedClient(llm.EmbedConfig{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.EmbedModel,
		RatePerSec: cfg.LLM.RatePerSec,
		Burst:      cfg.LLM.Burst,
	})
	generator := llm.NewChatClient(llm.ChatConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.ChatModel,
		Temperature: *cfg.LLM.Temperature,
	})

	opts := rag.DefaultOptions()
	opts.Limit = cfg.Search.Limit
	opts.Params = semantic.SearchParams{HnswEf: cfg.Search.HnswEf, Exact: cfg.Search.Exact}

	ragSvc := rag.New(embedder, store, generator, opts, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /search", handleSearch(ragSvc, logger))
	mux.Handle("GET /metrics", metrics.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.HTTP.CORSOrigin),
		mid.OTel("pxlex-api"),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.HTTP.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// SearchRequest is the JSON body for POST /search.
type SearchRequest struct {
	Search string `json:"search"`
}

// SearchResponse is the JSON response for POST /search.
type SearchResponse struct {
	Code int        `json:"code"`
	Data SearchData `json:"data"`
}

// SearchData carries the answer. Tags is reserved and currently always empty.
type SearchData struct {
	Search string   `json:"search"`
	Answer string   `json:"answer"`
	Tags   []string `json:"tags"`
}

func handleSearch(ragSvc *rag.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Search == "" {
			http.Error(w, `{"error":"search is required"}`, http.StatusBadRequest)
			return
		}

		answer, err := ragSvc.Answer(r.Context(), req.Search)
		if err != nil {
			logger.Error("query failed", "error", err)
			var se *domain.ServiceError
			if errors.As(err, &se) {
				http.Error(w, `{"error":"upstream service failure"}`, http.StatusBadGateway)
				return
			}
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{
			Code: http.StatusOK,
			Data: SearchData{
				Search: req.Search,
				Answer: answer,
				Tags:   []string{},
			},
		})
	}
}
