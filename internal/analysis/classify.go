package analysis

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// TrainTestSplit shuffles n row indices with seed and holds out
// ceil(testFraction * n) of them
func TrainTestSplit(n int, testFraction float64, seed int64) (train, test []int, err error) {
	nTest := int(math.Ceil(testFraction * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, fmt.Errorf("%w: cannot split %d rows with test fraction %v", ErrInsufficientData, n, testFraction)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// Evaluation scores a classifier on held-out rows
type Evaluation struct {
	Accuracy float64
	Report   string
}

// Evaluate predicts class 1 when P > 0.5
func Evaluate(c Classifier, d *Design) (*Evaluation, error) {
	pred := make([]float64, d.Rows())
	for i := range pred {
		p, err := c.PredictProba(d.X.RawRowView(i))
		if err != nil {
			return nil, err
		}
		if p > 0.5 {
			pred[i] = 1
		}
	}

	correct := 0
	for i := range pred {
		if pred[i] == d.Y[i] {
			correct++
		}
	}
	return &Evaluation{
		Accuracy: float64(correct) / float64(len(pred)),
		Report:   ClassificationReport(d.Y, pred),
	}, nil
}

// ClassificationReport renders per-class precision, recall, F1 and support
func ClassificationReport(truth, pred []float64) string {
	seen := make(map[float64]bool)
	for i := range truth {
		seen[truth[i]] = true
		seen[pred[i]] = true
	}
	labels := make([]float64, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Float64s(labels)

	var b strings.Builder
	fmt.Fprintf(&b, "%14s%11s%10s%10s%10s\n\n", "", "precision", "recall", "f1-score", "support")

	total := len(truth)
	var macroP, macroR, macroF, weightP, weightR, weightF float64
	correct := 0
	for _, label := range labels {
		tp, fp, fn, support := 0, 0, 0, 0
		for i := range truth {
			t, p := truth[i] == label, pred[i] == label
			switch {
			case t && p:
				tp++
			case p:
				fp++
			case t:
				fn++
			}
			if t {
				support++
			}
		}
		correct += tp
		precision := ratio(tp, tp+fp)
		recall := ratio(tp, tp+fn)
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		fmt.Fprintf(&b, "%14s%11.2f%10.2f%10.2f%10d\n", fmt.Sprintf("%g", label), precision, recall, f1, support)

		macroP += precision
		macroR += recall
		macroF += f1
		w := float64(support) / float64(total)
		weightP += precision * w
		weightR += recall * w
		weightF += f1 * w
	}

	k := float64(len(labels))
	fmt.Fprintf(&b, "\n%14s%11s%10s%10.2f%10d\n", "accuracy", "", "", ratio(correct, total), total)
	fmt.Fprintf(&b, "%14s%11.2f%10.2f%10.2f%10d\n", "macro avg", macroP/k, macroR/k, macroF/k, total)
	fmt.Fprintf(&b, "%14s%11.2f%10.2f%10.2f%10d\n", "weighted avg", weightP, weightR, weightF, total)
	return b.String()
}

// FeatureImportance ranks features by score, highest first
func FeatureImportance(features []string, scores []float64) string {
	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	var b strings.Builder
	fmt.Fprintf(&b, "%-20s%12s\n", "Feature", "Importance")
	for _, i := range idx {
		fmt.Fprintf(&b, "%-20s%12.6f\n", features[i], scores[i])
	}
	return b.String()
}

// ModelReport is the text artifact written for one classifier
func ModelReport(title string, eval *Evaluation, features []string, scores []float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Accuracy: %.4f\n\n", title, eval.Accuracy)
	b.WriteString("Classification Report:\n")
	b.WriteString(eval.Report)
	b.WriteString("\nFeature Importance:\n")
	b.WriteString(FeatureImportance(features, scores))
	return b.String()
}

// Classification holds the fitted classifiers and their reports.
// Reports are empty when the models were refit on RAS alone.
type Classification struct {
	Features       []string
	Logistic       *LogisticRegression
	Forest         *RandomForest
	LogisticReport string
	ForestReport   string
	Fallback       bool
	FallbackReason error
}

// ClassifyOptions controls the split and the forest seed
type ClassifyOptions struct {
	TestFraction float64
	Seed         int64
}

// Classify fits both classifiers on a held-out split. When that fails both
// are refit on RAS alone over every row so the prediction grid still has
// models. The returned error is set only when the fallback fails too.
func Classify(d *Design, opts ClassifyOptions) (*Classification, error) {
	res, err := classifySplit(d, opts)
	if err == nil {
		return res, nil
	}

	log.Warn().Err(err).Msg("Classification on full feature set failed, refitting on RAS only")

	ras := d.Column(FeatureRAS)
	if ras == nil {
		return nil, fmt.Errorf("%w: no %s feature", ErrInsufficientData, FeatureRAS)
	}
	out := &Classification{Features: ras.Features, Fallback: true, FallbackReason: err}

	lr := NewLogisticRegression()
	if lerr := lr.Fit(ras); lerr != nil {
		log.Warn().Err(lerr).Msg("Fallback logistic regression failed")
	} else {
		out.Logistic = lr
	}
	rf := NewRandomForest(opts.Seed)
	if ferr := rf.Fit(ras); ferr != nil {
		log.Warn().Err(ferr).Msg("Fallback random forest failed")
	} else {
		out.Forest = rf
	}

	if out.Logistic == nil && out.Forest == nil {
		return out, fmt.Errorf("fallback classification failed: %w", err)
	}
	return out, nil
}

func classifySplit(d *Design, opts ClassifyOptions) (*Classification, error) {
	trainIdx, testIdx, err := TrainTestSplit(d.Rows(), opts.TestFraction, opts.Seed)
	if err != nil {
		return nil, err
	}
	train, test := d.Subset(trainIdx), d.Subset(testIdx)

	lr := NewLogisticRegression()
	if err := lr.Fit(train); err != nil {
		return nil, fmt.Errorf("logistic regression: %w", err)
	}
	lrEval, err := Evaluate(lr, test)
	if err != nil {
		return nil, err
	}

	rf := NewRandomForest(opts.Seed)
	if err := rf.Fit(train); err != nil {
		return nil, fmt.Errorf("random forest: %w", err)
	}
	rfEval, err := Evaluate(rf, test)
	if err != nil {
		return nil, err
	}

	log.Info().
		Float64("logistic_accuracy", lrEval.Accuracy).
		Float64("forest_accuracy", rfEval.Accuracy).
		Int("train", len(trainIdx)).
		Int("test", len(testIdx)).
		Msg("Trained classifiers")

	return &Classification{
		Features:       d.Features,
		Logistic:       lr,
		Forest:         rf,
		LogisticReport: ModelReport("Logistic Regression", lrEval, d.Features, lr.Importance()),
		ForestReport:   ModelReport("Random Forest", rfEval, d.Features, rf.Importance()),
	}, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
