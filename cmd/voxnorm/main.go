// Command voxnorm normalizes diarized transcription engine output into
// role-mapped clinical dialogs.
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
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/centomomd/voxnorm/internal/cleanup"
	"github.com/centomomd/voxnorm/internal/config"
	"github.com/centomomd/voxnorm/internal/ingest"
	"github.com/centomomd/voxnorm/internal/narrative"
	"github.com/centomomd/voxnorm/internal/normalize"
	"github.com/centomomd/voxnorm/internal/observe"
	"github.com/centomomd/voxnorm/internal/pipeline"
	"github.com/centomomd/voxnorm/internal/rolemap"
	"github.com/centomomd/voxnorm/pkg/dialog"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	format := flag.String("format", "text", "output format: json, text, or markdown")
	outDir := flag.String("out", "", "directory for output files; empty writes to stdout")
	mode := flag.String("mode", "turns", "processing mode: turns (full pipeline) or tokens (speaker normalizer)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "voxnorm: no input files\nusage: voxnorm [-config voxnorm.yaml] [-format json|text|markdown] [-out DIR] [-mode turns|tokens] FILE...")
		return 2
	}
	if *format != "json" && *format != "text" && *format != "markdown" {
		fmt.Fprintf(os.Stderr, "voxnorm: unknown format %q\n", *format)
		return 2
	}
	if *mode != "turns" && *mode != "tokens" {
		fmt.Fprintf(os.Stderr, "voxnorm: unknown mode %q\n", *mode)
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "voxnorm: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voxnorm"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	if addr := cfg.Server.MetricsAddr; addr != "" {
		go serveMetrics(addr)
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	p, err := buildPipeline(cfg)
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		return 1
	}

	slog.Info("voxnorm starting",
		"files", len(files),
		"mode", *mode,
		"format", *format,
		"profile", cfg.Pipeline.CleanupProfile,
	)

	// ── Process files ─────────────────────────────────────────────────────────
	var stdoutMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, file := range files {
		g.Go(func() error {
			out, err := processFile(gctx, p, file, *mode, *format)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			if *outDir == "" {
				stdoutMu.Lock()
				defer stdoutMu.Unlock()
				_, err := os.Stdout.WriteString(out)
				return err
			}
			return writeOutput(*outDir, file, *format, out)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("processing failed", "err", err)
		return 1
	}
	slog.Info("done", "files", len(files))
	return 0
}

// buildPipeline assembles the pipeline from configuration.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	var mapperOpts []rolemap.Option
	if cfg.Pipeline.LexiconPath != "" {
		lex, err := rolemap.LoadLexicon(cfg.Pipeline.LexiconPath)
		if err != nil {
			return nil, err
		}
		mapperOpts = append(mapperOpts, rolemap.WithLexicon(lex))
	}
	if cfg.Pipeline.FuzzyCues {
		mapperOpts = append(mapperOpts, rolemap.WithFuzzyCues(cfg.Pipeline.FuzzyThreshold))
	}

	return pipeline.New(
		pipeline.WithIngestor(ingest.New(ingest.WithLanguage(cfg.Pipeline.Language))),
		pipeline.WithMapper(rolemap.New(mapperOpts...)),
		pipeline.WithCleanupProfile(cleanup.ProfileByName(cfg.Pipeline.CleanupProfile)),
		pipeline.WithNarrativeOptions(cfg.Pipeline.Narrative),
	), nil
}

// processFile reads one engine result file and renders it per mode and format.
func processFile(ctx context.Context, p *pipeline.Pipeline, path, mode, format string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var res dialog.EngineResult
	if err := json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("decode engine result: %w", err)
	}

	if mode == "tokens" {
		return renderTokens(ctx, observe.DefaultMetrics(), &res)
	}

	art, err := p.Process(ctx, &res)
	if err != nil {
		return "", err
	}

	switch format {
	case "json":
		b, err := json.MarshalIndent(art, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b) + "\n", nil
	case "markdown":
		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return narrative.Markdown(art.Cleaned, title), nil
	default:
		return art.Narrative.Content + "\n", nil
	}
}

// renderTokens runs the standalone speaker normalizer and emits its result
// as JSON regardless of the requested format; the two-bucket stream has no
// narrative rendering.
func renderTokens(ctx context.Context, m *observe.Metrics, res *dialog.EngineResult) (string, error) {
	result := normalize.Normalize(res)

	m.AddDroppedTokens(ctx, result.Stats.DroppedLowConf)
	// UniqueAfter is pinned at 2 whenever any token survives, so fewer than
	// three input labels means nothing was folded.
	if folded := result.Stats.UniqueBefore - result.Stats.UniqueAfter; folded > 0 {
		m.AddFoldedLabels(ctx, folded)
	}

	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

// writeOutput writes out under dir, named after the input file with the
// extension matching the format.
func writeOutput(dir, inputPath, format, out string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	ext := map[string]string{"json": ".json", "markdown": ".md", "text": ".txt"}[format]
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return os.WriteFile(filepath.Join(dir, base+ext), []byte(out), 0o644)
}

// serveMetrics exposes the Prometheus scrape endpoint. Best-effort: a busy
// port logs an error but does not abort the batch.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics endpoint error", "err", err)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
