package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrSingleClass is returned when a classifier is fit on one target class
var ErrSingleClass = errors.New("target has a single class")

// Classifier estimates P(y = 1 | x)
type Classifier interface {
	Fit(d *Design) error
	PredictProba(x []float64) (float64, error)
	Importance() []float64
}

// LogisticRegression is an L2-regularized logistic model fit by Newton's
// method. The intercept is not penalized.
type LogisticRegression struct {
	// C is the inverse regularization strength
	C       float64
	MaxIter int
	Tol     float64

	Intercept float64
	Coef      []float64
	Iter      int
}

// NewLogisticRegression returns a model with C = 1 and at most 1000 iterations
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{C: 1, MaxIter: 1000, Tol: 1e-8}
}

// Fit estimates the coefficients
func (m *LogisticRegression) Fit(d *Design) error {
	if err := checkClasses(d.Y); err != nil {
		return err
	}
	n, p := d.X.Dims()
	k := p + 1

	// augmented design with the intercept in column 0
	x := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		for j := 0; j < p; j++ {
			x.Set(i, j+1, d.X.At(i, j))
		}
	}

	lambda := 1 / m.C
	w := mat.NewVecDense(k, nil)
	prob := make([]float64, n)

	for m.Iter = 1; m.Iter <= m.MaxIter; m.Iter++ {
		var z mat.VecDense
		z.MulVec(x, w)
		for i := 0; i < n; i++ {
			prob[i] = sigmoid(z.AtVec(i))
		}

		grad := mat.NewVecDense(k, nil)
		hess := mat.NewSymDense(k, nil)
		for i := 0; i < n; i++ {
			row := x.RawRowView(i)
			resid := prob[i] - d.Y[i]
			weight := math.Max(prob[i]*(1-prob[i]), 1e-12)
			for a := 0; a < k; a++ {
				grad.SetVec(a, grad.AtVec(a)+resid*row[a])
				for b := a; b < k; b++ {
					hess.SetSym(a, b, hess.At(a, b)+weight*row[a]*row[b])
				}
			}
		}
		for a := 1; a < k; a++ {
			grad.SetVec(a, grad.AtVec(a)+lambda*w.AtVec(a))
			hess.SetSym(a, a, hess.At(a, a)+lambda)
		}

		var step mat.VecDense
		var chol mat.Cholesky
		if ok := chol.Factorize(hess); ok {
			if err := chol.SolveVecTo(&step, grad); err != nil {
				return fmt.Errorf("newton step: %w", err)
			}
		} else if err := step.SolveVec(hess, grad); err != nil {
			return fmt.Errorf("newton step: %w", err)
		}

		w.SubVec(w, &step)
		if mat.Norm(&step, math.Inf(1)) < m.Tol {
			break
		}
	}
	if m.Iter > m.MaxIter {
		m.Iter = m.MaxIter
	}

	m.Intercept = w.AtVec(0)
	m.Coef = make([]float64, p)
	for j := 0; j < p; j++ {
		m.Coef[j] = w.AtVec(j + 1)
	}
	return nil
}

// PredictProba returns P(y = 1) for one feature row
func (m *LogisticRegression) PredictProba(x []float64) (float64, error) {
	if m.Coef == nil {
		return 0, errors.New("logistic regression is not fitted")
	}
	if len(x) != len(m.Coef) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.Coef), len(x))
	}
	return sigmoid(m.Intercept + floats.Dot(m.Coef, x)), nil
}

// Importance is the absolute value of each coefficient
func (m *LogisticRegression) Importance() []float64 {
	out := make([]float64, len(m.Coef))
	for j, c := range m.Coef {
		out[j] = math.Abs(c)
	}
	return out
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func checkClasses(y []float64) error {
	if len(y) == 0 {
		return fmt.Errorf("%w: no observations", ErrInsufficientData)
	}
	for _, v := range y[1:] {
		if v != y[0] {
			return nil
		}
	}
	return ErrSingleClass
}
