package main

// Demo data generator for the cafeteria survey.
// Writes a CSV with the columns the trainer expects.

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/alexflint/go-arg"
)

// SurveyGenerator creates plausible survey answers from a seeded source
type SurveyGenerator struct {
	rng *rand.Rand
}

// Answer is one generated survey row
type Answer struct {
	Age              int
	Classe           string
	TypeRepas        string
	Calories         int
	CoutRepas        float64
	FreqConsommation int
	Satisfaction     int
	Recommande       int
}

var (
	// school years with the usual age of their pupils
	classes = []struct {
		Name string
		Age  int
	}{
		{"CP", 6},
		{"CE1", 7},
		{"CE2", 8},
		{"CM1", 9},
		{"CM2", 10},
	}

	// meal types with a base calorie count and price
	meals = []struct {
		Name     string
		Calories int
		Cost     float64
	}{
		{"standard", 650, 3.20},
		{"vegetarien", 560, 3.00},
		{"sans_porc", 630, 3.20},
		{"allergies", 600, 4.10},
	}

	header = []string{"age", "classe", "type_repas", "calories", "cout_repas", "freq_consommation", "satisfaction", "recommande"}
)

// NewSurveyGenerator creates a generator; equal seeds give equal output
func NewSurveyGenerator(seed int64) *SurveyGenerator {
	return &SurveyGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Next draws one answer. Pupils who eat often, like the meal and are not
// charged much tend to recommend the cafeteria.
func (g *SurveyGenerator) Next() Answer {
	class := classes[g.rng.Intn(len(classes))]
	meal := meals[g.rng.Intn(len(meals))]

	freq := g.rng.Intn(6) // meals per week, 0-5
	cost := meal.Cost + (g.rng.Float64()*0.6 - 0.3)
	calories := meal.Calories + g.rng.Intn(121) - 60

	satisfaction := 1 + g.rng.Intn(5)
	if meal.Name == "vegetarien" && g.rng.Float64() < 0.3 {
		satisfaction = min(5, satisfaction+1)
	}

	score := 1.1*float64(satisfaction-3) + 0.4*float64(freq-2) - 1.5*(cost-3.2) + g.rng.NormFloat64()*0.8
	recommande := 0
	if score > 0 {
		recommande = 1
	}

	return Answer{
		Age:              class.Age + g.rng.Intn(2),
		Classe:           class.Name,
		TypeRepas:        meal.Name,
		Calories:         calories,
		CoutRepas:        math.Round(cost*100) / 100,
		FreqConsommation: freq,
		Satisfaction:     satisfaction,
		Recommande:       recommande,
	}
}

// WriteCSV writes n answers with a header row. The last answer is redrawn
// until both labels appear, so n must be at least 2.
func (g *SurveyGenerator) WriteCSV(w io.Writer, n int) error {
	if n < 2 {
		return fmt.Errorf("need at least 2 rows to cover both labels, got %d", n)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	var seen [2]bool
	for i := 0; i < n; i++ {
		a := g.Next()
		if i == n-1 {
			for !seen[0] && a.Recommande == 1 || !seen[1] && a.Recommande == 0 {
				a = g.Next()
			}
		}
		seen[a.Recommande] = true
		row := []string{
			strconv.Itoa(a.Age),
			a.Classe,
			a.TypeRepas,
			strconv.Itoa(a.Calories),
			strconv.FormatFloat(a.CoutRepas, 'f', 2, 64),
			strconv.Itoa(a.FreqConsommation),
			strconv.Itoa(a.Satisfaction),
			strconv.Itoa(a.Recommande),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type args struct {
	Out  string `arg:"--out" default:"data/cantine.csv" help:"destination CSV file"`
	Rows int    `arg:"--rows" default:"500" help:"number of answers to generate"`
	Seed int64  `arg:"--seed" default:"7" help:"random seed"`
}

func (args) Description() string {
	return "Generate a synthetic cafeteria survey for the trainer."
}

func main() {
	var a args
	arg.MustParse(&a)

	if a.Rows < 2 {
		fmt.Fprintln(os.Stderr, "rows must be at least 2")
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(a.Out), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(a.Out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", a.Out, err)
		os.Exit(1)
	}

	if err := NewSurveyGenerator(a.Seed).WriteCSV(f, a.Rows); err != nil {
		f.Close()
		fmt.Fprintf(os.Stderr, "Failed to write survey: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close %s: %v\n", a.Out, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d answers to %s\n", a.Rows, a.Out)
}
