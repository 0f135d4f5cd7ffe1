package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind tells which variant a Value holds
type Kind uint8

const (
	// KindNA is the "no answer" marker, distinct from zero and from an empty code set
	KindNA Kind = iota
	KindNumber
	KindCodes
	KindText
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNA:
		return "NA"
	case KindNumber:
		return "number"
	case KindCodes:
		return "codes"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Value is one response cell. The zero Value is NA.
type Value struct {
	kind  Kind
	num   float64
	codes []int
	text  string
}

// NA returns the missing-response marker
func NA() Value { return Value{} }

// Number returns a scalar value. NaN and infinities are stored as NA.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NA()
	}
	return Value{kind: KindNumber, num: f}
}

// Code returns a single-choice code as a scalar value
func Code(c int) Value { return Number(float64(c)) }

// Codes returns a multi-choice response. Duplicates are dropped and first-seen
// order is kept; an empty call yields the empty set, not NA.
func Codes(cs ...int) Value {
	out := make([]int, 0, len(cs))
	for _, c := range cs {
		dup := false
		for _, o := range out {
			if o == c {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return Value{kind: KindCodes, codes: out}
}

// SortedCodes is Codes with the result sorted ascending
func SortedCodes(cs ...int) Value {
	v := Codes(cs...)
	sort.Ints(v.codes)
	return v
}

// Text returns an open-ended answer
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Kind returns the variant
func (v Value) Kind() Kind { return v.kind }

// IsNA reports whether v is the missing marker
func (v Value) IsNA() bool { return v.kind == KindNA }

// Float returns the scalar value
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Int returns the scalar value when it is integral
func (v Value) Int() (int, bool) {
	f, ok := v.Float()
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// CodeSet returns the respondent's codes. A scalar integral value is read as a
// one-element set.
func (v Value) CodeSet() ([]int, bool) {
	switch v.kind {
	case KindCodes:
		return v.codes, true
	case KindNumber:
		if c, ok := v.Int(); ok {
			return []int{c}, true
		}
	}
	return nil, false
}

// Equal compares two values by variant and content
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	case KindCodes:
		if len(v.codes) != len(o.codes) {
			return false
		}
		for i := range v.codes {
			if v.codes[i] != o.codes[i] {
				return false
			}
		}
	}
	return true
}

// String renders the value the way exports show it: "" for NA, "1,2,3" for
// code sets.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindCodes:
		return JoinCodes(v.codes)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// FormatNumber prints integral values without a decimal part
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// JoinCodes renders codes as a comma-joined list
func JoinCodes(cs []int) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

// ParseCodes reads a "1,2,3" list. Blank entries are skipped.
func ParseCodes(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil || f != math.Trunc(f) {
			return nil, fmt.Errorf("invalid code %q", part)
		}
		out = append(out, int(f))
	}
	return out, nil
}

// MarshalJSON encodes NA as null, code sets as arrays
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindCodes:
		if v.codes == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.codes)
	case KindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*v = NA()
	case data[0] == '[':
		var cs []int
		if err := json.Unmarshal(data, &cs); err != nil {
			return fmt.Errorf("decode code set: %w", err)
		}
		*v = Codes(cs...)
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("decode number: %w", err)
		}
		*v = Number(f)
	}
	return nil
}
