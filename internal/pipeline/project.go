package pipeline

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"staats/internal/class"
	apperrors "staats/internal/errors"
	"staats/internal/filter"
	"staats/internal/recode"
	"staats/internal/schema"
	"staats/internal/tabulation"
)

// TabPlan groups tabs that share a population and a weight. Filter is AND-ed
// with each tab's own filter; Weight, when set, replaces the tabs' weights.
type TabPlan struct {
	Name   string `json:"name" yaml:"name" validate:"required"`
	Filter string `json:"filter,omitempty" yaml:"filter,omitempty"`
	Weight string `json:"weight,omitempty" yaml:"weight,omitempty"`
	// Summaries lists numeric variables to describe over the plan population
	Summaries []string          `json:"summaries,omitempty" yaml:"summaries,omitempty"`
	Tabs      []tabulation.Spec `json:"tabs" yaml:"tabs" validate:"required,min=1,dive"`
}

// Entity names the plan in issue lists
func (p TabPlan) Entity() string { return fmt.Sprintf("plan %q", p.Name) }

// Project is the complete configuration of a survey run: the question
// catalog, derived variables, populations, binnings and table plans.
type Project struct {
	Name      string            `json:"name" yaml:"name" validate:"required"`
	Questions []schema.Question `json:"questions" yaml:"questions" validate:"required,min=1,dive"`
	Recodes   []recode.Recode   `json:"recodes,omitempty" yaml:"recodes,omitempty" validate:"dive"`
	Filters   []filter.Filter   `json:"filters,omitempty" yaml:"filters,omitempty" validate:"dive"`
	Classes   []class.Class     `json:"classes,omitempty" yaml:"classes,omitempty" validate:"dive"`
	Plans     []TabPlan         `json:"plans,omitempty" yaml:"plans,omitempty" validate:"dive"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateStruct checks the struct tags of a project and returns one issue
// per failing field
func (p Project) ValidateStruct() apperrors.Issues {
	var issues apperrors.Issues
	err := structValidator().Struct(p)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		issues.AddError("project", apperrors.ErrTypeConfig, err)
		return issues
	}
	for _, fe := range verrs {
		issues.Add(fieldPath(fe), apperrors.ErrTypeConfig, "%s", formatFieldError(fe))
	}
	return issues
}

// Schema builds the question catalog
func (p Project) Schema() (*schema.Schema, error) {
	s, err := schema.New(p.Questions...)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid question catalog", err)
	}
	return s, nil
}

// Tabs returns every tab of every plan
func (p Project) Tabs() []tabulation.Spec {
	var out []tabulation.Spec
	for _, plan := range p.Plans {
		out = append(out, plan.Tabs...)
	}
	return out
}

// fieldPath drops the root struct name: "Project.recodes[2].name" → "recodes[2].name"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
