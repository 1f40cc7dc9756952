package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/velocity"
)

// processLinesParallel runs every product line through velocity, forecast and
// reorder on a bounded worker pool. Results are index-addressed so output order
// never depends on scheduling. Lines dequeued after ctx is cancelled are marked
// unprocessed instead of started.
func (e *Engine) processLinesParallel(ctx context.Context, jobs []lineJob, stock map[string]int) []lineResult {
	workerCount := e.cfg.Workers
	if workerCount < 1 {
		workerCount = 1
	}
	if workerCount > len(jobs) {
		workerCount = len(jobs)
	}

	results := make([]lineResult, len(jobs))
	jobChan := make(chan lineJob, len(jobs))
	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobChan {
				if ctx.Err() != nil {
					results[job.index] = unprocessed(job.series, ctx.Err())
					continue
				}
				results[job.index] = e.processLine(ctx, job.series, stock)
				e.log.Debug().
					Int("worker", workerID).
					Str("product_line", job.series.ProductLine).
					Msg("product line processed")
			}
		}(i)
	}
	wg.Wait()

	return results
}

// processLine never fails the run: model problems degrade to a fallback forecast
// and only cancellation leaves the line unprocessed.
func (e *Engine) processLine(ctx context.Context, series domain.ProductSeries, stock map[string]int) lineResult {
	line := series.ProductLine
	profile := velocity.Analyze(series, e.cfg.TrendEpsilon)
	profile.ProductLine = line

	res := lineResult{analysis: domain.ProductAnalysis{
		ProductLine: line,
		Series:      series,
		Velocity:    &profile,
	}}
	if series.InsufficientHistory {
		res.analysis.Excluded = true
		return res
	}

	fc, warnings, err := e.forecaster.Forecast(ctx, series, profile)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return unprocessed(series, err)
		}
		e.log.Error().Err(err).Str("product_line", line).Msg("forecast failed")
		res.analysis.Excluded = true
		res.warnings = append(res.warnings, domain.Warning{
			ProductLine: line,
			Reason:      domain.WarnModelFallback,
			Detail:      err.Error(),
		})
		return res
	}
	res.warnings = append(res.warnings, warnings...)

	current, ok := stock[line]
	if !ok {
		res.warnings = append(res.warnings, domain.Warning{
			ProductLine: line,
			Reason:      domain.WarnMissingStock,
			Detail:      "no current stock level supplied; assuming 0 units",
		})
	}

	suggestion := e.calculator.Calculate(fc, profile, current)
	res.analysis.Forecast = &fc
	res.analysis.Reorder = &suggestion
	return res
}

func unprocessed(series domain.ProductSeries, cause error) lineResult {
	return lineResult{
		analysis: domain.ProductAnalysis{
			ProductLine: series.ProductLine,
			Series:      series,
			Unprocessed: true,
		},
		warnings: []domain.Warning{{
			ProductLine: series.ProductLine,
			Reason:      domain.WarnUnprocessed,
			Detail:      fmt.Sprintf("run cancelled before completion: %v", cause),
		}},
	}
}
