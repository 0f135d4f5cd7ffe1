package recode

import (
	"fmt"
	"strings"
)

// Kind is the closed set of recode transformations
type Kind string

const (
	QualiUnique     Kind = "quali_unique"
	QualiMultiple   Kind = "quali_multiple"
	Numeric         Kind = "numeric"
	NumberOfAnswers Kind = "number_of_answers"
	Combination     Kind = "combination"
	Weight          Kind = "weight"
	QualiMultiIni   Kind = "quali_multi_ini"
)

// Kinds lists every kind in declaration order
var Kinds = []Kind{QualiUnique, QualiMultiple, Numeric, NumberOfAnswers, Combination, Weight, QualiMultiIni}

var kindAliases = map[string]Kind{
	"quali_unique":      QualiUnique,
	"qualiunique":       QualiUnique,
	"qu":                QualiUnique,
	"quali_multiple":    QualiMultiple,
	"quali_multi":       QualiMultiple,
	"qualimultiple":     QualiMultiple,
	"qm":                QualiMultiple,
	"numeric":           Numeric,
	"n":                 Numeric,
	"number_of_answers": NumberOfAnswers,
	"numberofanswers":   NumberOfAnswers,
	"nb_answers":        NumberOfAnswers,
	"combination":       Combination,
	"weight":            Weight,
	"redressement":      Weight,
	"quali_multi_ini":   QualiMultiIni,
	"qualimultiini":     QualiMultiIni,
	"subtotal":          QualiMultiIni,
}

// ParseKind accepts the canonical names and the spellings found in legacy
// configuration workbooks ("Quali Unique", "Number of answers", "QM", ...).
func ParseKind(s string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if k, ok := kindAliases[key]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown recode kind %q", s)
}

// UnmarshalText normalizes kinds read from JSON or YAML
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// IsRuleBased reports whether the formula is a rule list
func (k Kind) IsRuleBased() bool {
	switch k {
	case QualiUnique, QualiMultiple, Weight, QualiMultiIni:
		return true
	}
	return false
}
