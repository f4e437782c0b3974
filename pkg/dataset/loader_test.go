package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "age,classe,type_repas,calories,cout_repas,freq_consommation,satisfaction,recommande"

// surveyCSV builds n rows where every third row is not recommended.
func surveyCSV(n int) string {
	classes := []string{"CP", "CE1", "CM2"}
	meals := []string{"vegetarien", "standard"}

	var b strings.Builder
	b.WriteString(header + "\n")
	for i := 0; i < n; i++ {
		label := 1
		if i%3 == 0 {
			label = 0
		}
		fmt.Fprintf(&b, "%d,%s,%s,%d,%.2f,%d,%d,%d\n",
			6+i, classes[i%3], meals[i%2], 400+10*i, 2.5+0.1*float64(i), i%5, 1+i%5, label)
	}
	return b.String()
}

func TestParse(t *testing.T) {
	ds, err := Parse(strings.NewReader(surveyCSV(6)))
	require.NoError(t, err)

	assert.Equal(t, 6, ds.Len())
	first := ds.Record(0)
	assert.Equal(t, 6.0, first.Age)
	assert.Equal(t, "CP", first.Classe)
	assert.Equal(t, "vegetarien", first.TypeRepas)
	assert.Equal(t, 400.0, first.Calories)
	assert.Equal(t, 2.5, first.CoutRepas)
	assert.Equal(t, 0.0, first.FreqConsommation)
	assert.Equal(t, 1.0, first.Satisfaction)
	assert.Equal(t, 0, first.Recommande)

	assert.Equal(t, []int{0, 1, 1, 0, 1, 1}, ds.Labels())
}

func TestParse_ExtraColumnsAndOrder(t *testing.T) {
	csv := "id,recommande,satisfaction,freq_consommation,cout_repas,calories,type_repas,classe,age,commentaire\n" +
		"a,1,4,3,2.8,510,standard,CM1,9,ok\n" +
		"b,0.0,2,1,3.1,620,vegetarien,CE2,8,bof\n"

	ds, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	assert.Equal(t, Record{Age: 9, Classe: "CM1", TypeRepas: "standard", Calories: 510,
		CoutRepas: 2.8, FreqConsommation: 3, Satisfaction: 4, Recommande: 1}, ds.Record(0))
	assert.Equal(t, 0, ds.Record(1).Recommande)
}

func TestParse_BooleanLabels(t *testing.T) {
	csv := header + "\n" +
		"8,CP,standard,500,2.5,1,3,True\n" +
		"9,CE1,vegetarien,480,2.7,2,4,False\n" +
		"10,CM2,standard,520,3.1,4,5,true\n" +
		"7,CP,standard,530,3.0,0,1,FALSE\n" +
		"8,CE1,standard,510,2.9,3,2,1.0\n"

	ds, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1, 0, 1}, ds.Labels())

	_, err = Parse(strings.NewReader(header + "\n8,CP,standard,500,2.5,1,3,yes\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid label "yes"`)
}

func TestParse_MissingColumns(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		missing []string
	}{
		{"one missing", "age,classe,type_repas,calories,cout_repas,freq_consommation,recommande", []string{"satisfaction"}},
		{"several missing", "classe,calories,satisfaction,recommande", []string{"age", "type_repas", "cout_repas", "freq_consommation"}},
		{"label missing", "age,classe,type_repas,calories,cout_repas,freq_consommation,satisfaction", []string{"recommande"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.header + "\n"))
			require.Error(t, err)

			var mc *MissingColumnsError
			require.True(t, errors.As(err, &mc))
			assert.Equal(t, tt.missing, mc.Columns)
			assert.True(t, IsMissingColumns(err))
		})
	}
}

func TestMissingColumnsError_Message(t *testing.T) {
	err := &MissingColumnsError{Columns: []string{"age", "classe"}}
	assert.Equal(t, "missing columns in CSV: [age classe]", err.Error())
}

func TestParse_InvalidValues(t *testing.T) {
	t.Run("non numeric", func(t *testing.T) {
		csv := header + "\n8,CP,standard,abc,2.5,1,3,1\n"
		_, err := Parse(strings.NewReader(csv))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 2")
		assert.Contains(t, err.Error(), `"calories"`)
		assert.False(t, IsMissingColumns(err))
	})

	t.Run("fractional label", func(t *testing.T) {
		csv := header + "\n8,CP,standard,500,2.5,1,3,0.5\n"
		_, err := Parse(strings.NewReader(csv))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "recommande")
	})

	t.Run("ragged row", func(t *testing.T) {
		csv := header + "\n8,CP,standard\n"
		_, err := Parse(strings.NewReader(csv))
		require.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := Parse(strings.NewReader(""))
		require.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cantine.csv")
	require.NoError(t, os.WriteFile(path, []byte(surveyCSV(9)), 0644))

	ds, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, ds.Len())
	assert.Equal(t, path, ds.Path())

	_, err = Load(filepath.Join(dir, "absent.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDataset_Columns(t *testing.T) {
	ds, err := Parse(strings.NewReader(surveyCSV(4)))
	require.NoError(t, err)

	classe, err := ds.Categorical(ColClasse)
	require.NoError(t, err)
	assert.Equal(t, []string{"CP", "CE1", "CM2", "CP"}, classe)

	age, err := ds.Numeric(ColAge)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 7, 8, 9}, age)

	_, err = ds.Categorical(ColAge)
	assert.Error(t, err)
	_, err = ds.Numeric(ColClasse)
	assert.Error(t, err)

	// returned slices are copies
	classe[0] = "mutated"
	again, _ := ds.Categorical(ColClasse)
	assert.Equal(t, "CP", again[0])
}

func TestDataset_Hash(t *testing.T) {
	a, err := Parse(strings.NewReader(surveyCSV(10)))
	require.NoError(t, err)
	b, err := Parse(strings.NewReader(surveyCSV(10)))
	require.NoError(t, err)
	c, err := Parse(strings.NewReader(surveyCSV(11)))
	require.NoError(t, err)

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.Len(t, a.Hash(), 16)
}
