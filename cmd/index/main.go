// Command index rebuilds the lexicon vector collection from the source
// workbook: reset the collection, normalize every row, embed it, and upsert
// it. Per-row failures are reported at the end; only fatal errors exit
// non-zero.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/puxianlab/pxlex/engine/index"
	"github.com/puxianlab/pxlex/engine/lexicon"
	"github.com/puxianlab/pxlex/engine/llm"
	"github.com/puxianlab/pxlex/engine/semantic"
	"github.com/puxianlab/pxlex/pkg/config"
)

func main() {
	var (
		configPath = flag.String("config", "config/local.yaml", "path to config file")
		dataPath   = flag.String("data", "data/莆仙词汇表.xlsx", "path to lexicon workbook")
		rowLimit   = flag.Int("rows", -1, "limit indexed rows (-1: use config, 0: all)")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *dataPath, *rowLimit, log); err != nil {
		log.Error("index run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, dataPath string, rowLimit int, log *slog.Logger) error {
	store, err := semantic.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection, cfg.Qdrant.VectorSize)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder := llm.NewEmbedClient(llm.EmbedConfig{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.EmbedModel,
		RatePerSec: cfg.LLM.RatePerSec,
		Burst:      cfg.LLM.Burst,
	})

	rows, err := lexicon.ReadFile(dataPath)
	if err != nil {
		return err
	}
	log.Info("workbook loaded", "path", dataPath, "rows", len(rows))

	opts := index.DefaultOptions()
	opts.Workers = cfg.Index.Workers
	opts.RowLimit = cfg.Index.RowLimit
	if rowLimit >= 0 {
		opts.RowLimit = rowLimit
	}

	runner := index.New(embedder, store, opts, log)
	report, err := runner.Run(ctx, rows)
	for _, re := range report.Errors {
		log.Warn("row rejected", "line", re.Line, "word", re.Word, "error", re.Err)
	}
	if err != nil {
		return err
	}

	log.Info("indexing complete",
		"collection", cfg.Qdrant.Collection,
		"total", report.Total,
		"indexed", report.Indexed,
		"failed", len(report.Errors),
	)
	return nil
}
