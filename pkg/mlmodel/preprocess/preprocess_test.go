package preprocess

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// memTable is an in-memory Table for tests
type memTable struct {
	cats map[string][]string
	nums map[string][]float64
	n    int
}

func (m memTable) Len() int { return m.n }

func (m memTable) Categorical(column string) ([]string, error) {
	v, ok := m.cats[column]
	if !ok {
		return nil, fmt.Errorf("no column %s", column)
	}
	return v, nil
}

func (m memTable) Numeric(column string) ([]float64, error) {
	v, ok := m.nums[column]
	if !ok {
		return nil, fmt.Errorf("no column %s", column)
	}
	return v, nil
}

func trainTable() memTable {
	return memTable{
		n: 4,
		cats: map[string][]string{
			"classe":     {"CM2", "CP", "CE1", "CP"},
			"type_repas": {"standard", "vegetarien", "standard", "standard"},
		},
		nums: map[string][]float64{
			"age":          {10, 6, 7, 6},
			"satisfaction": {4, 2, 5, 3},
		},
	}
}

func TestOneHotEncoder_Fit(t *testing.T) {
	enc := NewOneHotEncoder("classe", "type_repas")
	assert.False(t, enc.Fitted())

	require.NoError(t, enc.Fit(trainTable()))
	assert.True(t, enc.Fitted())
	assert.Equal(t, [][]string{{"CE1", "CM2", "CP"}, {"standard", "vegetarien"}}, enc.Categories)
	assert.Equal(t, 5, enc.Width())
	assert.Equal(t, []string{
		"classe_CE1", "classe_CM2", "classe_CP",
		"type_repas_standard", "type_repas_vegetarien",
	}, enc.FeatureNames())
}

func TestOneHotEncoder_Transform(t *testing.T) {
	enc := NewOneHotEncoder("classe", "type_repas")
	require.NoError(t, enc.Fit(trainTable()))

	X, err := enc.Transform(trainTable())
	require.NoError(t, err)

	want := mat.NewDense(4, 5, []float64{
		0, 1, 0, 1, 0,
		0, 0, 1, 0, 1,
		1, 0, 0, 1, 0,
		0, 0, 1, 1, 0,
	})
	assert.True(t, mat.Equal(want, X))
}

func TestOneHotEncoder_UnknownCategory(t *testing.T) {
	enc := NewOneHotEncoder("classe", "type_repas")
	require.NoError(t, enc.Fit(trainTable()))

	unseen := memTable{
		n: 1,
		cats: map[string][]string{
			"classe":     {"CM1"},
			"type_repas": {"vegetarien"},
		},
	}

	X, err := enc.Transform(unseen)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 1}, mat.Row(nil, 0, X))

	enc.HandleUnknown = HandleUnknownError
	_, err = enc.Transform(unseen)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CM1")
}

func TestOneHotEncoder_Errors(t *testing.T) {
	enc := NewOneHotEncoder("classe")
	_, err := enc.Transform(trainTable())
	assert.Error(t, err, "transform before fit")

	assert.Error(t, enc.Fit(memTable{}))

	missing := NewOneHotEncoder("region")
	assert.Error(t, missing.Fit(trainTable()))
}

func TestColumnTransformer(t *testing.T) {
	ct := NewColumnTransformer([]string{"classe", "type_repas"}, []string{"age", "satisfaction"})

	X, err := ct.FitTransform(trainTable())
	require.NoError(t, err)

	rows, cols := X.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 7, cols)
	assert.Equal(t, []string{
		"classe_CE1", "classe_CM2", "classe_CP",
		"type_repas_standard", "type_repas_vegetarien",
		"age", "satisfaction",
	}, ct.FeatureNames())

	assert.Equal(t, []float64{0, 1, 0, 1, 0, 10, 4}, mat.Row(nil, 0, X))
	assert.Equal(t, []float64{0, 0, 1, 0, 1, 6, 2}, mat.Row(nil, 1, X))
}

func TestColumnTransformer_TransformBeforeFit(t *testing.T) {
	ct := NewColumnTransformer([]string{"classe"}, []string{"age"})
	_, err := ct.Transform(trainTable())
	assert.Error(t, err)
}

func TestColumnTransformer_Signature(t *testing.T) {
	a := NewColumnTransformer([]string{"classe", "type_repas"}, []string{"age"})
	b := NewColumnTransformer([]string{"classe", "type_repas"}, []string{"age"})
	c := NewColumnTransformer([]string{"type_repas", "classe"}, []string{"age"})

	assert.Equal(t, a.Signature(), b.Signature())
	assert.NotEqual(t, a.Signature(), c.Signature())
	assert.Contains(t, a.Signature(), "handle_unknown=ignore")
}
