package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dococr/internal/models"
	"dococr/internal/ocr"
)

// ProgressFunc is called after each page has been attempted.
type ProgressFunc func(page, total int, status models.PageStatus)

type PipelineConfig struct {
	Engine      string
	Instruction string
	DPI         int
	PagePause   time.Duration
	Sanitize    bool
	KeepImages  bool
	ImageDir    string
	// RawImages hands the rendered page to the recognizer unchanged, for
	// local engines that read the full-resolution render.
	RawImages bool
}

// Pipeline runs pages through preprocessing, recognition and persistence one
// at a time. A failing page is recorded and skipped; only rasterization
// errors abort a run.
type Pipeline struct {
	cfg        PipelineConfig
	raster     Rasterizer
	prep       *Preprocessor
	recognizer ocr.Recognizer
	store      OutputStore
	ledger     *Ledger
	log        logrus.FieldLogger
	progress   ProgressFunc
}

// NewPipeline wires the pipeline. ledger may be nil.
func NewPipeline(
	cfg PipelineConfig,
	raster Rasterizer,
	prep *Preprocessor,
	recognizer ocr.Recognizer,
	store OutputStore,
	ledger *Ledger,
	log logrus.FieldLogger,
) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Engine == "" {
		cfg.Engine = recognizer.Name()
	}
	return &Pipeline{
		cfg:        cfg,
		raster:     raster,
		prep:       prep,
		recognizer: recognizer,
		store:      store,
		ledger:     ledger,
		log:        log,
	}
}

func (p *Pipeline) OnProgress(fn ProgressFunc) {
	p.progress = fn
}

// Run processes every page of source. The returned error is non-nil only for
// setup failures (ErrSourceNotFound, ErrRasterize, ledger errors) or when ctx
// is canceled; in the latter case the partial summary is returned as well.
func (p *Pipeline) Run(ctx context.Context, source string) (*models.RunSummary, error) {
	start := time.Now()

	p.log.WithField("source", source).Info("converting PDF to images")
	pages, err := p.raster.Rasterize(ctx, source, p.cfg.DPI)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no pages produced for %s", ErrRasterize, source)
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	summary := &models.RunSummary{
		RunID:  uuid.NewString(),
		Source: source,
		Pages:  len(pages),
	}
	if p.ledger != nil {
		run, err := p.ledger.StartRun(ctx, source, p.cfg.Engine, len(pages))
		if err != nil {
			return nil, err
		}
		summary.RunID = run.ID
	}

	log := p.log.WithField("run_id", summary.RunID)
	log.WithField("pages", len(pages)).Info("rasterization complete")

	var runErr error
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		rec := p.processPage(ctx, log, summary.RunID, page)
		if rec.Status == models.PageSucceeded {
			summary.Succeeded++
		} else {
			summary.FailedPages = append(summary.FailedPages, page.Index)
		}

		if p.ledger != nil {
			if err := p.ledger.RecordPage(context.WithoutCancel(ctx), rec); err != nil {
				log.WithField("page", page.Index).WithError(err).Warn("could not record page in ledger")
			}
		}
		if p.progress != nil {
			p.progress(page.Index, len(pages), rec.Status)
		}

		if i < len(pages)-1 {
			if err := sleep(ctx, p.cfg.PagePause); err != nil {
				runErr = err
				break
			}
		}
	}

	// cancellation during the last page is not seen by the loop
	if runErr == nil {
		runErr = ctx.Err()
	}

	if err := p.store.Close(); err != nil {
		log.WithError(err).Error("could not flush output")
	}

	summary.Elapsed = time.Since(start)
	if p.ledger != nil {
		// the run row is finished even when ctx was canceled
		if err := p.ledger.FinishRun(context.WithoutCancel(ctx), summary); err != nil {
			log.WithError(err).Warn("could not finish run in ledger")
		}
	}

	log.WithFields(logrus.Fields{
		"pages":     summary.Pages,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed(),
		"elapsed":   summary.Elapsed.Round(10 * time.Millisecond).String(),
	}).Info("total processing time")

	if runErr != nil {
		return summary, runErr
	}
	return summary, nil
}

func (p *Pipeline) processPage(ctx context.Context, log logrus.FieldLogger, runID string, page models.PageImage) models.PageRecord {
	log = log.WithField("page", page.Index)
	rec := models.PageRecord{
		RunID:  runID,
		Page:   page.Index,
		Status: models.PageFailed,
	}
	fail := func(msg string, err error) models.PageRecord {
		log.WithError(err).Warn(msg)
		rec.Error = err.Error()
		rec.RecordedAt = time.Now().UTC()
		return rec
	}

	if p.cfg.KeepImages {
		if err := p.saveImage(page); err != nil {
			log.WithError(err).Warn("could not keep page image")
		}
	}

	log.Info("running OCR")
	payload := ocr.Payload{Data: page.Data, Format: page.Format}
	if !p.cfg.RawImages {
		var err error
		if payload, err = p.prep.Prepare(page); err != nil {
			return fail("could not preprocess page", err)
		}
	}

	result, err := p.recognizer.Recognize(ctx, page.Index, payload, p.cfg.Instruction)
	if err != nil {
		return fail("could not extract text", err)
	}
	rec.Attempts = result.Attempts

	text := result.Text
	if p.cfg.Sanitize {
		text = Clean(text)
	}
	if text == "" {
		return fail("no text detected", ocr.ErrNoText)
	}
	rec.Text = text

	if err := p.store.Save(ctx, rec); err != nil {
		rec.Text = ""
		return fail("could not save page text", err)
	}

	rec.Status = models.PageSucceeded
	rec.RecordedAt = time.Now().UTC()
	log.WithField("attempts", rec.Attempts).Info("OCR completed")
	return rec
}

func (p *Pipeline) saveImage(page models.PageImage) error {
	if err := os.MkdirAll(p.cfg.ImageDir, 0o755); err != nil {
		return fmt.Errorf("ensure image dir: %w", err)
	}
	path := filepath.Join(p.cfg.ImageDir, fmt.Sprintf("page_%d.png", page.Index))
	if err := os.WriteFile(path, page.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
