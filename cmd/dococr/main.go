// dococr converts a PDF into page images and extracts the text of every page
// with a recognition engine (an Ollama-style chat service, an
// OpenAI-compatible API, or local Tesseract).
//
// Usage:
//
//	dococr [flags] [document.pdf]
//
// Settings come from the environment (and a .env file); flags override them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"dococr/internal/config"
	"dococr/internal/db"
	"dococr/internal/logging"
	"dococr/internal/models"
	"dococr/internal/ocr"
	"dococr/internal/services"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	applyFlags(&cfg, os.Args[1:])

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("configuration")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recognizer, err := ocr.New(cfg, log)
	if err != nil {
		log.WithError(err).Error("could not create recognition engine")
		return 2
	}

	store, err := services.NewFileStore(cfg.OutputDir, cfg.OutputFormat, cfg.Combined)
	if err != nil {
		log.WithError(err).Error("could not prepare output")
		return 1
	}

	var ledger *services.Ledger
	if cfg.DatabasePath != "" {
		conn, err := db.Open(cfg.DatabasePath)
		if err != nil {
			log.WithError(err).Error("open database")
			return 1
		}
		defer conn.Close()
		ledger = services.NewLedger(conn)
	}

	pipeline := services.NewPipeline(
		services.PipelineConfig{
			Engine:      cfg.Engine,
			Instruction: cfg.Prompt,
			DPI:         cfg.DPI,
			PagePause:   cfg.PagePause,
			Sanitize:    cfg.Clean,
			KeepImages:  cfg.KeepImages,
			ImageDir:    cfg.ImageDir,
			RawImages:   cfg.Engine == config.EngineTesseract,
		},
		services.NewPDFService(cfg.GhostscriptPath),
		services.NewPreprocessor(cfg.MaxEdge, cfg.JPEGQuality, cfg.MaxPayloadBytes),
		recognizer,
		store,
		ledger,
		log,
	)
	pipeline.OnProgress(func(page, total int, status models.PageStatus) {
		log.WithField("status", status).Infof("page %d/%d done", page, total)
	})

	summary, err := pipeline.Run(ctx, cfg.SourcePath)
	switch {
	case errors.Is(err, services.ErrSourceNotFound):
		log.WithError(err).Error("check the document path")
		return 1
	case errors.Is(err, services.ErrRasterize):
		log.WithError(err).Error("could not convert PDF to images")
		return 1
	case errors.Is(err, context.Canceled):
		log.Warn("interrupted")
		return 130
	case err != nil:
		log.WithError(err).Error("run failed")
		return 1
	}

	if summary.Succeeded == 0 {
		log.Warn("no text was extracted from any page")
	}
	for _, path := range store.Written() {
		log.WithField("path", path).Info("text saved")
	}
	log.WithFields(logrus.Fields{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed(),
	}).Infof("total processing time: %.2f seconds", summary.Elapsed.Seconds())
	return 0
}

func applyFlags(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("dococr", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: dococr [flags] [document.pdf]\n\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&cfg.SourcePath, "in", cfg.SourcePath, "source PDF")
	fs.StringVar(&cfg.Engine, "engine", cfg.Engine, "recognition engine: ollama, openai or tesseract")
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "recognition service URL")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "model identifier")
	fs.StringVar(&cfg.Prompt, "prompt", cfg.Prompt, "instruction sent with every page")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	fs.IntVar(&cfg.MaxRetries, "retries", cfg.MaxRetries, "attempts per page")
	fs.DurationVar(&cfg.PagePause, "pause", cfg.PagePause, "pause between pages")
	fs.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "output directory")
	fs.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "output format: md, txt or html")
	fs.BoolVar(&cfg.KeepImages, "keep-images", cfg.KeepImages, "keep rendered page images in the image dir")
	fs.BoolVar(&cfg.Combined, "combined", cfg.Combined, "write a single output file for the document")
	fs.BoolVar(&cfg.Clean, "clean", cfg.Clean, "strip OCR noise from recognized text")
	fs.IntVar(&cfg.DPI, "dpi", cfg.DPI, "rasterization resolution")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite run ledger (empty disables)")
	lang := fs.String("lang", "", "tesseract languages, e.g. spa+eng")
	verbose := fs.Bool("v", false, "debug logging")

	_ = fs.Parse(args)

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// a flag-selected engine brings its own defaults unless overridden
	if set["engine"] {
		local := cfg.Engine == config.EngineTesseract
		if !set["endpoint"] && os.Getenv("OCR_ENDPOINT") == "" {
			cfg.Endpoint = config.DefaultEndpoint(cfg.Engine)
		}
		if !set["model"] && os.Getenv("OCR_MODEL") == "" {
			cfg.Model = config.DefaultModel(cfg.Engine)
		}
		if !set["clean"] && os.Getenv("CLEAN_TEXT") == "" {
			cfg.Clean = local
		}
		if !set["combined"] && os.Getenv("COMBINED_OUTPUT") == "" {
			cfg.Combined = local
		}
	}

	if fs.NArg() > 0 {
		cfg.SourcePath = fs.Arg(0)
	}
	if *lang != "" {
		cfg.Languages = strings.FieldsFunc(*lang, func(r rune) bool { return r == '+' || r == ',' })
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
}
