// Package pipeline runs a survey project end to end.
//
// A Project bundles the question catalog with recodes, filters, classes and
// tab plans. New checks the struct tags and registers the definitions;
// Preflight compiles everything against the catalog (and optionally checks a
// dataset) and reports every problem at once; Run evaluates the recodes in
// dependency order and generates every plan's tables.
//
//	p, err := pipeline.New(project, pipeline.WithSettings(settings))
//	if err != nil {
//	    return err // apperrors.Issues
//	}
//	report, err := p.Run(ctx, ds)
//
// Each run gets a uuid run id, carried in the context so log records and
// spans of the run can be correlated.
package pipeline
