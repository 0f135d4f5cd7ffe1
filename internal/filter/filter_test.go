package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staats/internal/dataset"
	apperrors "staats/internal/errors"
	"staats/internal/schema"
)

func fixture(t *testing.T) (*dataset.Dataset, *schema.Schema) {
	t.Helper()
	s, err := schema.New(
		schema.Question{Name: "Age", Type: schema.Numeric},
		schema.Question{Name: "Gender", Type: schema.QualiUnique,
			Codes: schema.CodeTable{{Value: 1, Label: "Male"}, {Value: 2, Label: "Female"}}},
		schema.Question{Name: "Brands", Type: schema.QualiMultiple,
			Codes: schema.CodeTable{{Value: 1, Label: "Nike"}, {Value: 2, Label: "Adidas"}}},
	)
	require.NoError(t, err)
	ds := dataset.FromRows([]string{"Age", "Gender", "Brands"}, []map[string]dataset.Value{
		{"Age": dataset.Number(20), "Gender": dataset.Code(1), "Brands": dataset.Codes(1)},
		{"Age": dataset.Number(35), "Gender": dataset.Code(2), "Brands": dataset.Codes(1, 2)},
		{"Age": dataset.NA(), "Gender": dataset.Code(2), "Brands": dataset.Codes(2)},
		{"Age": dataset.Number(50), "Gender": dataset.NA(), "Brands": dataset.NA()},
	})
	return ds, s
}

func TestApply(t *testing.T) {
	ds, s := fixture(t)
	e := NewEngine(nil)
	require.NoError(t, e.Add(Filter{Name: "Adults", Formula: `["Age">=30]`}))
	require.NoError(t, e.Add(Filter{Name: "AdultsNA", Formula: `["Age">=30]`, WithNA: true}))
	require.NoError(t, e.Add(Filter{Name: "Women Nike", Formula: `["Gender"=2] and ["Brands"C1]`}))

	tests := []struct {
		name string
		want []bool
	}{
		{"Adults", []bool{false, true, false, true}},
		{"AdultsNA", []bool{false, true, true, true}},
		{"Women Nike", []bool{false, true, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, err := e.Apply(tt.name, ds, s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mask)
		})
	}

	_, err := e.Apply("Nope", ds, s)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeNotFound, appErr.Type)
}

func TestValidate(t *testing.T) {
	_, s := fixture(t)
	e := NewEngine(nil)
	require.NoError(t, e.Add(Filter{Name: "ok", Formula: `["Age">1]`}))
	require.NoError(t, e.Add(Filter{Name: "unknown", Formula: `["Income">1]`}))
	require.NoError(t, e.Add(Filter{Name: "mismatch", Formula: `["Brands"=1]`}))
	require.NoError(t, e.Add(Filter{Name: "syntax", Formula: `["Age">1] or ["Age"<0]`}))
	assert.Error(t, e.Add(Filter{Name: "ok", Formula: `["Age">2]`}))

	issues := e.Validate(s)
	require.Len(t, issues, 3)
	assert.Equal(t, `filter "unknown"`, issues[0].Entity)
	assert.Equal(t, `filter "mismatch"`, issues[1].Entity)
	assert.Equal(t, apperrors.ErrTypeParse, issues[2].Kind)
	assert.Len(t, e.Filters(), 4, "validation leaves the engine unchanged")
}

func TestTestAll(t *testing.T) {
	ds, s := fixture(t)
	e := NewEngine(nil)
	require.NoError(t, e.Add(Filter{Name: "Men", Formula: `["Gender"=1]`}))
	require.NoError(t, e.Add(Filter{Name: "Broken", Formula: `["Gender"C1]`}))

	masks, issues := e.Test(ds, s)
	assert.Len(t, issues, 1)
	require.Contains(t, masks, "Men")
	assert.NotContains(t, masks, "Broken")
	assert.Equal(t, 1, Count(masks["Men"]))
}

func TestAnd(t *testing.T) {
	assert.Nil(t, And(nil, nil))
	assert.Equal(t, []bool{true, false}, And(nil, []bool{true, false}))
	assert.Equal(t, []bool{true, false, false}, And([]bool{true, true, false}, []bool{true, false, true}))
}
