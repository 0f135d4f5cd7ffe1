package schema

import (
	"fmt"
	"strings"
)

// QuestionType is the survey notation type of a question
type QuestionType string

const (
	QualiUnique   QuestionType = "QU"
	QualiMultiple QuestionType = "QM"
	Numeric       QuestionType = "N"
	Open          QuestionType = "O"
)

// ParseQuestionType accepts the short notation (QU, QM, N, O) and the long
// forms used in legacy workbooks, case-insensitively.
func ParseQuestionType(s string) (QuestionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "QU", "QUALI UNIQUE", "QUALI_UNIQUE":
		return QualiUnique, nil
	case "QM", "QUALI MULTIPLE", "QUALI_MULTIPLE", "QUALI_MULTI":
		return QualiMultiple, nil
	case "N", "NUMERIC":
		return Numeric, nil
	case "O", "OPEN":
		return Open, nil
	}
	return "", fmt.Errorf("unknown question type %q", s)
}

// UnmarshalText accepts every spelling ParseQuestionType does
func (t *QuestionType) UnmarshalText(text []byte) error {
	parsed, err := ParseQuestionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsQualitative reports whether answers are codes from a code table
func (t QuestionType) IsQualitative() bool {
	return t == QualiUnique || t == QualiMultiple
}

// String returns the long name of the type
func (t QuestionType) String() string {
	switch t {
	case QualiUnique:
		return "QualiUnique"
	case QualiMultiple:
		return "QualiMultiple"
	case Numeric:
		return "Numeric"
	case Open:
		return "Open"
	default:
		return "unknown"
	}
}

// Code is one entry of a code table
type Code struct {
	Value int    `json:"code" yaml:"code"`
	Label string `json:"label" yaml:"label"`
}

// CodeTable is an ordered code → label mapping
type CodeTable []Code

// Label returns the label for code
func (ct CodeTable) Label(code int) (string, bool) {
	for _, c := range ct {
		if c.Value == code {
			return c.Label, true
		}
	}
	return "", false
}

// Has reports whether code is defined
func (ct CodeTable) Has(code int) bool {
	_, ok := ct.Label(code)
	return ok
}

// Values returns the codes in table order
func (ct CodeTable) Values() []int {
	out := make([]int, len(ct))
	for i, c := range ct {
		out[i] = c.Value
	}
	return out
}

// Merge returns a table with the codes of ct followed by the codes of other
// that ct does not define yet.
func (ct CodeTable) Merge(other CodeTable) CodeTable {
	out := make(CodeTable, len(ct), len(ct)+len(other))
	copy(out, ct)
	for _, c := range other {
		if !out.Has(c.Value) {
			out = append(out, c)
		}
	}
	return out
}

// Question is a survey question definition
type Question struct {
	Name  string       `json:"name" yaml:"name" validate:"required"`
	Type  QuestionType `json:"type" yaml:"type" validate:"required,oneof=QU QM N O"`
	Label string       `json:"label" yaml:"label"`
	Codes CodeTable    `json:"codes,omitempty" yaml:"codes,omitempty"`
}

// Validate checks the question invariants
func (q Question) Validate() error {
	if strings.TrimSpace(q.Name) == "" {
		return fmt.Errorf("question name is empty")
	}
	switch q.Type {
	case QualiUnique, QualiMultiple:
		if len(q.Codes) == 0 {
			return fmt.Errorf("question %q: %s question needs a code table", q.Name, q.Type)
		}
	case Numeric, Open:
	default:
		return fmt.Errorf("question %q: unknown type %q", q.Name, q.Type)
	}
	seen := make(map[int]bool, len(q.Codes))
	for _, c := range q.Codes {
		if seen[c.Value] {
			return fmt.Errorf("question %q: duplicate code %d", q.Name, c.Value)
		}
		seen[c.Value] = true
	}
	return nil
}

// Schema is the question catalog of a survey, keyed by name and keeping
// declaration order.
type Schema struct {
	order     []string
	questions map[string]Question
}

// New creates a schema from questions
func New(questions ...Question) (*Schema, error) {
	s := &Schema{questions: make(map[string]Question, len(questions))}
	for _, q := range questions {
		if err := s.Add(q); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers a question; names must be unique
func (s *Schema) Add(q Question) error {
	if s.questions == nil {
		s.questions = make(map[string]Question)
	}
	if err := q.Validate(); err != nil {
		return err
	}
	if _, exists := s.questions[q.Name]; exists {
		return fmt.Errorf("duplicate question %q", q.Name)
	}
	s.questions[q.Name] = q
	s.order = append(s.order, q.Name)
	return nil
}

// Put adds q or replaces the question of the same name in place
func (s *Schema) Put(q Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if s.questions == nil {
		s.questions = make(map[string]Question)
	}
	if _, exists := s.questions[q.Name]; !exists {
		s.order = append(s.order, q.Name)
	}
	s.questions[q.Name] = q
	return nil
}

// Question looks a question up by name
func (s *Schema) Question(name string) (Question, bool) {
	if s == nil {
		return Question{}, false
	}
	q, ok := s.questions[name]
	return q, ok
}

// Names returns question names in declaration order
func (s *Schema) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Questions returns the questions in declaration order
func (s *Schema) Questions() []Question {
	out := make([]Question, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.questions[n])
	}
	return out
}

// Len returns the number of questions
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Clone returns an independent copy that can be extended without touching s
func (s *Schema) Clone() *Schema {
	c := &Schema{
		order:     make([]string, len(s.order)),
		questions: make(map[string]Question, len(s.questions)),
	}
	copy(c.order, s.order)
	for k, v := range s.questions {
		c.questions[k] = v
	}
	return c
}
