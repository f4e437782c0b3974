package mlmodel

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/sjwhitworth/golearn/evaluation"

	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/dataset"
	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/models"
)

// PositiveClass is the label scored by recall and F1
const PositiveClass = 1

// ClassReport holds the per-class scores of a classification report
type ClassReport struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Evaluation is the outcome of scoring predictions against true labels
type Evaluation struct {
	YTrue     []int
	YPred     []int
	Confusion evaluation.ConfusionMatrix

	Classes     []ClassReport
	Accuracy    float64
	Recall      float64
	F1          float64
	MacroAvg    ClassReport
	WeightedAvg ClassReport
	Support     int
}

// Evaluate predicts test with p and scores the result against the true labels
func Evaluate(p *Pipeline, test *dataset.Dataset) (*Evaluation, error) {
	if test.Len() == 0 {
		return nil, fmt.Errorf("empty test set")
	}
	pred, err := p.Predict(test)
	if err != nil {
		return nil, fmt.Errorf("failed to predict test set: %w", err)
	}
	return EvaluatePredictions(test.Labels(), pred, PositiveClass)
}

// EvaluatePredictions scores yPred against yTrue. Recall and F1 are reported
// for the positive label. Any zero denominator yields 0.
func EvaluatePredictions(yTrue, yPred []int, positive int) (*Evaluation, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("got %d predictions for %d labels", len(yPred), len(yTrue))
	}

	labels := uniqueInts(yTrue, yPred)
	cm := make(evaluation.ConfusionMatrix, len(labels))
	for _, l := range labels {
		cm[strconv.Itoa(l)] = make(map[string]int, len(labels))
	}
	for i := range yTrue {
		cm[strconv.Itoa(yTrue[i])][strconv.Itoa(yPred[i])]++
	}

	ev := &Evaluation{
		YTrue:     yTrue,
		YPred:     yPred,
		Confusion: cm,
		Support:   len(yTrue),
	}
	if len(yTrue) > 0 {
		ev.Accuracy = guard(evaluation.GetAccuracy(cm))
	}

	for _, l := range labels {
		ev.Classes = append(ev.Classes, classReport(cm, strconv.Itoa(l)))
	}
	pos := classReport(cm, strconv.Itoa(positive))
	ev.Recall = pos.Recall
	ev.F1 = pos.F1

	ev.MacroAvg = ClassReport{Label: "macro avg", Support: ev.Support}
	ev.WeightedAvg = ClassReport{Label: "weighted avg", Support: ev.Support}
	for _, c := range ev.Classes {
		ev.MacroAvg.Precision += c.Precision
		ev.MacroAvg.Recall += c.Recall
		ev.MacroAvg.F1 += c.F1

		w := float64(c.Support)
		ev.WeightedAvg.Precision += w * c.Precision
		ev.WeightedAvg.Recall += w * c.Recall
		ev.WeightedAvg.F1 += w * c.F1
	}
	if k := float64(len(ev.Classes)); k > 0 {
		ev.MacroAvg.Precision /= k
		ev.MacroAvg.Recall /= k
		ev.MacroAvg.F1 /= k
	}
	if n := float64(ev.Support); n > 0 {
		ev.WeightedAvg.Precision /= n
		ev.WeightedAvg.Recall /= n
		ev.WeightedAvg.F1 /= n
	}
	return ev, nil
}

func classReport(cm evaluation.ConfusionMatrix, label string) ClassReport {
	tp := evaluation.GetTruePositives(label, cm)
	fp := evaluation.GetFalsePositives(label, cm)
	fn := evaluation.GetFalseNegatives(label, cm)
	return ClassReport{
		Label:     label,
		Precision: ratio(tp, tp+fp),
		Recall:    ratio(tp, tp+fn),
		F1:        ratio(2*tp, 2*tp+fp+fn),
		Support:   int(tp + fn),
	}
}

// Metrics returns the scores persisted to metrics.json
func (e *Evaluation) Metrics() models.Metrics {
	return models.Metrics{Accuracy: e.Accuracy, Recall: e.Recall, F1: e.F1}
}

// Report renders a per-class precision/recall/F1 table with three decimals
func (e *Evaluation) Report() string {
	var buf bytes.Buffer
	e.WriteReport(&buf)
	return buf.String()
}

// WriteReport renders the classification report to w
func (e *Evaluation) WriteReport(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"", "precision", "recall", "f1-score", "support"})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetHeaderLine(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetHeaderAlignment(tablewriter.ALIGN_RIGHT)

	for _, c := range e.Classes {
		table.Append(reportRow(c))
	}
	table.Append([]string{"", "", "", "", ""})
	table.Append([]string{"accuracy", "", "", score(e.Accuracy), strconv.Itoa(e.Support)})
	table.Append(reportRow(e.MacroAvg))
	table.Append(reportRow(e.WeightedAvg))
	table.Render()
}

func reportRow(c ClassReport) []string {
	return []string{c.Label, score(c.Precision), score(c.Recall), score(c.F1), strconv.Itoa(c.Support)}
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return guard(num / den)
}

func guard(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// uniqueInts returns the sorted union of the values in all slices
func uniqueInts(slices ...[]int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, s := range slices {
		for _, v := range s {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
