package errors

import (
	"fmt"
	"strings"
)

// Issue is one problem found while checking or running a batch. Entity names
// the configuration object it belongs to, e.g. `recode "AgeGroup"`.
type Issue struct {
	Entity  string    `json:"entity"`
	Kind    ErrorType `json:"kind"`
	Message string    `json:"message"`
}

// String renders the issue on one line
func (i Issue) String() string {
	if i.Entity == "" {
		return fmt.Sprintf("[%s] %s", i.Kind, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Kind, i.Entity, i.Message)
}

// Issues collects every problem of a pass so callers see all of them at once
// instead of the first one.
type Issues []Issue

// Add appends a new issue
func (is *Issues) Add(entity string, kind ErrorType, format string, args ...interface{}) {
	*is = append(*is, Issue{Entity: entity, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// AddError appends err under entity. Issues and AppErrors keep their own kind;
// anything else is recorded with the fallback kind.
func (is *Issues) AddError(entity string, fallback ErrorType, err error) {
	if err == nil {
		return
	}
	switch e := err.(type) {
	case Issues:
		for _, i := range e {
			if i.Entity == "" {
				i.Entity = entity
			}
			*is = append(*is, i)
		}
	case *AppError:
		*is = append(*is, Issue{Entity: entity, Kind: e.Type, Message: e.Message})
	default:
		if k, ok := err.(interface{ Kind() ErrorType }); ok {
			fallback = k.Kind()
		}
		*is = append(*is, Issue{Entity: entity, Kind: fallback, Message: err.Error()})
	}
}

// Extend appends all issues of other
func (is *Issues) Extend(other Issues) {
	*is = append(*is, other...)
}

// ByKind returns the issues of the given kind
func (is Issues) ByKind(kind ErrorType) Issues {
	var out Issues
	for _, i := range is {
		if i.Kind == kind {
			out = append(out, i)
		}
	}
	return out
}

// Err returns nil when no issue was collected, the list itself otherwise
func (is Issues) Err() error {
	if len(is) == 0 {
		return nil
	}
	return is
}

// Error implements the error interface
func (is Issues) Error() string {
	switch len(is) {
	case 0:
		return "no issues"
	case 1:
		return is[0].String()
	}
	lines := make([]string, 0, len(is)+1)
	lines = append(lines, fmt.Sprintf("%d issues:", len(is)))
	for _, i := range is {
		lines = append(lines, "  "+i.String())
	}
	return strings.Join(lines, "\n")
}
