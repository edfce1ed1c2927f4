package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// OLSResult is a fitted ordinary least squares model
type OLSResult struct {
	Target   string
	Features []string
	Coef     []float64
	StdErr   []float64
	T        []float64
	P        []float64
	N        int
	DFModel  int
	DFResid  int
	R2       float64
	AdjR2    float64
	F        float64
	FProb    float64
}

// FitOLS regresses y on the columns of x. The first column is expected to
// be the constant. A rank-deficient design is solved with the
// pseudo-inverse.
func FitOLS(target string, d *Design) (*OLSResult, error) {
	n := d.Rows()
	if n == 0 || d.X == nil {
		return nil, fmt.Errorf("%w: no observations", ErrInsufficientData)
	}
	_, p := d.X.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(d.X, mat.SVDThin); !ok {
		return nil, errors.New("svd factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sv := svd.Values(nil)

	tol := float64(max(n, p)) * sv[0] * 1e-15
	rank := 0
	inv := make([]float64, len(sv))
	for i, s := range sv {
		if s > tol {
			inv[i] = 1 / s
			rank++
		}
	}

	dfResid := n - rank
	if rank == 0 || dfResid <= 0 {
		return nil, fmt.Errorf("%w: %d observations for %d parameters", ErrInsufficientData, n, rank)
	}

	// beta = V S+ U' y
	y := mat.NewVecDense(n, d.Y)
	var uty mat.VecDense
	uty.MulVec(u.T(), y)
	for i := range inv {
		uty.SetVec(i, uty.AtVec(i)*inv[i])
	}
	var beta mat.VecDense
	beta.MulVec(&v, &uty)

	// (X'X)+ = V S+^2 V'
	var vs mat.Dense
	vs.Apply(func(_, j int, x float64) float64 { return x * inv[j] }, &v)
	var cov mat.Dense
	cov.Mul(&vs, vs.T())

	var fitted mat.VecDense
	fitted.MulVec(d.X, &beta)
	ssr := 0.0
	for i := 0; i < n; i++ {
		r := d.Y[i] - fitted.AtVec(i)
		ssr += r * r
	}
	ybar := stat.Mean(d.Y, nil)
	sst := 0.0
	for _, yi := range d.Y {
		sst += (yi - ybar) * (yi - ybar)
	}

	sigma2 := ssr / float64(dfResid)
	res := &OLSResult{
		Target:   target,
		Features: d.Features,
		Coef:     make([]float64, p),
		StdErr:   make([]float64, p),
		T:        make([]float64, p),
		P:        make([]float64, p),
		N:        n,
		DFModel:  rank - 1,
		DFResid:  dfResid,
	}
	for j := 0; j < p; j++ {
		res.Coef[j] = beta.AtVec(j)
		res.StdErr[j] = math.Sqrt(sigma2 * cov.At(j, j))
		res.T[j] = res.Coef[j] / res.StdErr[j]
		res.P[j] = twoSidedT(res.T[j], float64(dfResid))
	}

	if sst > 0 {
		res.R2 = 1 - ssr/sst
	}
	res.AdjR2 = 1 - float64(n-1)/float64(dfResid)*(1-res.R2)
	if res.DFModel > 0 {
		res.F = ((sst - ssr) / float64(res.DFModel)) / sigma2
		fdist := distuv.F{D1: float64(res.DFModel), D2: float64(dfResid)}
		res.FProb = fdist.Survival(res.F)
	} else {
		res.F = math.NaN()
		res.FProb = math.NaN()
	}

	return res, nil
}

// Summary renders the fit as a plain-text regression table
func (r *OLSResult) Summary() string {
	var b strings.Builder
	rule := strings.Repeat("=", 78)
	thin := strings.Repeat("-", 78)

	fmt.Fprintf(&b, "%s\n", center("OLS Regression Results", 78))
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "%-22s%17s   %-22s%14.3f\n", "Dep. Variable:", r.Target, "R-squared:", r.R2)
	fmt.Fprintf(&b, "%-22s%17s   %-22s%14.3f\n", "Model:", "OLS", "Adj. R-squared:", r.AdjR2)
	fmt.Fprintf(&b, "%-22s%17s   %-22s%14.4g\n", "Method:", "Least Squares", "F-statistic:", r.F)
	fmt.Fprintf(&b, "%-22s%17d   %-22s%14.3g\n", "No. Observations:", r.N, "Prob (F-statistic):", r.FProb)
	fmt.Fprintf(&b, "%-22s%17d\n", "Df Residuals:", r.DFResid)
	fmt.Fprintf(&b, "%-22s%17d\n", "Df Model:", r.DFModel)
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "%-20s%12s%12s%12s%12s\n", "", "coef", "std err", "t", "P>|t|")
	fmt.Fprintf(&b, "%s\n", thin)
	for j, name := range r.Features {
		fmt.Fprintf(&b, "%-20s%12.4f%12.3f%12.3f%12.3f\n", name, r.Coef[j], r.StdErr[j], r.T[j], r.P[j])
	}
	fmt.Fprintf(&b, "%s\n", rule)
	return b.String()
}

// Coefficient returns the fitted coefficient of a feature
func (r *OLSResult) Coefficient(name string) (float64, bool) {
	j := indexOf(r.Features, name)
	if j < 0 {
		return 0, false
	}
	return r.Coef[j], true
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}
