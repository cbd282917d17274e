// Package pipeline chains the extract, normalize and load stages.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/TobiSchelling/habrpipe/internal/artifact"
	"github.com/TobiSchelling/habrpipe/internal/config"
	"github.com/TobiSchelling/habrpipe/internal/extract"
	"github.com/TobiSchelling/habrpipe/internal/load"
	"github.com/TobiSchelling/habrpipe/internal/normalize"
	"github.com/TobiSchelling/habrpipe/internal/store"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps []StepResult
}

// Err returns the first step error, if any.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return fmt.Errorf("%s: %w", s.Name, s.Err)
		}
	}
	return nil
}

// Pipeline runs the three stages in order. Each stage reads the artifact the
// previous one wrote, so any stage can also be run on its own.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	fetcher extract.Fetcher
}

// New creates a new pipeline.
func New(cfg *config.Config, st store.Store, fetcher extract.Fetcher) *Pipeline {
	return &Pipeline{cfg: cfg, store: st, fetcher: fetcher}
}

// Run executes all stages, stopping at the first failing one.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}
	for _, step := range []func(context.Context) StepResult{p.runExtract, p.runNormalize, p.runLoad} {
		s := step(ctx)
		r.Steps = append(r.Steps, s)
		if s.Err != nil {
			break
		}
	}
	return r
}

// DryRun shows what each stage would start from without executing it.
func (p *Pipeline) DryRun(ctx context.Context) *Result {
	r := &Result{}

	r.Steps = append(r.Steps, StepResult{
		Name: "Extract",
		Summary: fmt.Sprintf("[dry-run] Would fetch %d pages from %s (%s delay)",
			p.cfg.Source.Pages, p.cfg.Source.BaseURL, p.cfg.Source.Delay()),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Normalize",
		Summary: "[dry-run] " + describeArtifact(p.cfg.RawPath()),
	})

	summary := "[dry-run] " + describeArtifact(p.cfg.CleanJSONPath())
	if n, err := p.store.CountArticles(ctx); err == nil {
		summary += fmt.Sprintf("; %d articles already stored", n)
	}
	r.Steps = append(r.Steps, StepResult{Name: "Load", Summary: summary})

	return r
}

func describeArtifact(path string) string {
	if artifact.Exists(path) {
		return "Input present: " + path
	}
	return "Input not yet written: " + path
}

func (p *Pipeline) runExtract(ctx context.Context) StepResult {
	log.Println("Step 1/3: Extracting listing pages...")
	src := p.cfg.Source
	extractor := extract.NewExtractor(p.fetcher, src.Pages, src.Delay(), p.cfg.RawPath())
	result, err := extractor.Run(ctx)
	if err != nil {
		return StepResult{Name: "Extract", Err: err}
	}
	return StepResult{
		Name: "Extract",
		Summary: fmt.Sprintf("Scraped %d articles from %d pages (%d failed)",
			result.Articles, result.Pages, result.FailedPages),
	}
}

func (p *Pipeline) runNormalize(ctx context.Context) StepResult {
	log.Println("Step 2/3: Normalizing articles...")
	normalizer := normalize.NewNormalizer(p.cfg.RawPath(), p.cfg.CleanJSONPath(), p.cfg.CleanCSVPath())
	result, err := normalizer.Run()
	if err != nil {
		return StepResult{Name: "Normalize", Err: err}
	}
	return StepResult{
		Name: "Normalize",
		Summary: fmt.Sprintf("Kept %d of %d articles (%d missing key, %d duplicates)",
			result.RowsOut, result.RowsIn, result.MissingKey, result.Duplicates),
	}
}

func (p *Pipeline) runLoad(ctx context.Context) StepResult {
	log.Println("Step 3/3: Loading into storage...")
	loader := load.NewLoader(p.store, p.cfg.Storage.BatchSize, p.cfg.CleanJSONPath())
	result, err := loader.Run(ctx)
	if err != nil {
		return StepResult{Name: "Load", Err: err}
	}
	return StepResult{
		Name: "Load",
		Summary: fmt.Sprintf("Inserted %d, updated %d, %d errors",
			result.Inserted, result.Updated, result.Errors),
	}
}
