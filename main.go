package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vodgrab/api"
	"vodgrab/config"
	"vodgrab/ffmpeg"
	"vodgrab/manifest"
	"vodgrab/metrics"
	"vodgrab/pipeline"
	"vodgrab/probe"
	"vodgrab/scrape"
	"vodgrab/segment"
	"vodgrab/task"

	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	fs := pflag.NewFlagSet("vodgrab", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vodgrab [flags] [input-file|-]\n\n")
		fs.PrintDefaults()
	}
	fs.String("config", "", "path to a yaml config file")
	fs.StringP("output", "o", ".", "directory that receives one folder per course")
	fs.StringP("quality", "q", "best", "quality profile (best, standard, datasaver, low) or tier order like 1500,500,2500,4500")
	fs.IntP("concurrency", "c", 10, "parallel segment downloads per video")
	fs.Bool("no-ffmpeg", false, "skip ffmpeg and concatenate segments into a .ts file")
	fs.Bool("serve", false, "run the HTTP task API instead of a batch")
	fs.String("port", "8080", "port for --serve")
	fs.Bool("progress", true, "draw progress bars instead of log lines")
	_ = fs.Parse(os.Args[1:])

	// 1. Load configuration
	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serve, _ := fs.GetBool("serve")
	if serve {
		runServer(ctx, stop, cfg)
		return
	}

	input := cfg.InputFile
	if fs.NArg() > 0 {
		input = fs.Arg(0)
	}
	os.Exit(runBatch(ctx, cfg, input))
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFile == "" {
		return
	}
	log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}))
}

// buildPipeline wires the stages against one shared HTTP client.
func buildPipeline(cfg *config.Config, reporter segment.Reporter) (*pipeline.Pipeline, error) {
	client := &http.Client{Timeout: cfg.HTTPTimeout}

	muxer, err := ffmpeg.NewMuxer(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg, pipeline.Deps{
		Scraper:    scrape.NewHTMLScraper(cfg, client),
		Prober:     probe.New(cfg, client),
		Fetcher:    manifest.NewFetcher(cfg, client),
		Downloader: segment.NewPool(cfg, client),
		Muxer:      muxer,
		Reporter:   reporter,
	})
}

func runBatch(ctx context.Context, cfg *config.Config, input string) int {
	var r io.Reader
	if input == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(input)
		if err != nil {
			log.Printf("[!] Cannot read task list: %v", err)
			return 1
		}
		defer f.Close()
		r = f
	}

	entries, warnings, err := task.ParseLines(r)
	if err != nil {
		log.Printf("[!] Failed to read %s: %v", input, err)
		return 1
	}
	for _, w := range warnings {
		log.Printf("[!] Skipping %v", w)
	}
	if len(entries) == 0 {
		log.Printf("No tasks found in %s", input)
		return 0
	}
	log.Printf("Loaded %d tasks from %s (quality %s, output %s)", len(entries), input, cfg.Quality, cfg.OutputDir)

	var reporter segment.Reporter = segment.NewLogReporter()
	if cfg.Progress {
		reporter = segment.NewBarReporter(os.Stderr)
	}
	p, err := buildPipeline(cfg, reporter)
	if err != nil {
		log.Printf("Failed to initialize pipeline: %v", err)
		return 1
	}

	summary := p.RunBatch(ctx, entries)
	switch {
	case ctx.Err() != nil:
		return 130
	case !summary.OK():
		return 1
	}
	return 0
}

func runServer(ctx context.Context, stop context.CancelFunc, cfg *config.Config) {
	p, err := buildPipeline(cfg, segment.NewLogReporter())
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}

	taskManager, err := task.NewManager(cfg, p)
	if err != nil {
		log.Fatalf("Failed to initialize task manager: %v", err)
	}

	router := api.SetupRouter(taskManager, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	taskManager.Start(ctx)

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()

	// Restore default behavior on the interrupt signal and notify user of shutdown.
	stop()
	log.Println("Shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
