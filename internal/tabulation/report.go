package tabulation

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"staats/internal/dataset"
	apperrors "staats/internal/errors"
)

// Report generates every spec over ds with at most workers tables computed at
// once. All specs are validated first; results keep the order of specs.
func (g *Generator) Report(ctx context.Context, ds *dataset.Dataset, specs []Spec, workers int) ([]*Result, error) {
	var issues apperrors.Issues
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			issues.Add(spec.Entity(), apperrors.ErrTypeValidation, "duplicate tab name")
		}
		seen[spec.Name] = true
		issues.Extend(g.Validate(spec))
	}
	if len(issues) > 0 {
		return nil, issues
	}

	if workers < 1 {
		workers = 1
	}
	start := time.Now()
	results := make([]*Result, len(specs))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, spec := range specs {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := g.Generate(ds, spec)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "tables generated",
		slog.Int("tables", len(results)),
		slog.Int("rows", ds.Len()),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}
