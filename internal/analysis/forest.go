package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// RandomForest is a bagged ensemble of Gini classification trees
type RandomForest struct {
	Trees int
	Seed  int64

	features   int
	forest     []*treeNode
	importance []float64
}

// NewRandomForest returns a forest of 100 trees seeded with seed
func NewRandomForest(seed int64) *RandomForest {
	return &RandomForest{Trees: 100, Seed: seed}
}

type treeNode struct {
	leaf      bool
	prob      float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

// Fit grows every tree on a bootstrap sample, trying the square root of the
// feature count at each split
func (f *RandomForest) Fit(d *Design) error {
	n := d.Rows()
	if n == 0 {
		return fmt.Errorf("%w: no observations", ErrInsufficientData)
	}
	_, p := d.X.Dims()
	f.features = p
	f.forest = make([]*treeNode, 0, f.Trees)
	f.importance = make([]float64, p)

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = d.X.RawRowView(i)
	}

	rng := rand.New(rand.NewSource(f.Seed))
	tries := max(1, int(math.Sqrt(float64(p))))

	for t := 0; t < f.Trees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		g := &grower{rows: rows, y: d.Y, rng: rng, tries: tries, importance: make([]float64, p)}
		f.forest = append(f.forest, g.grow(sample))

		if total := floats.Sum(g.importance); total > 0 {
			floats.Scale(1/total, g.importance)
			floats.Add(f.importance, g.importance)
		}
	}

	if total := floats.Sum(f.importance); total > 0 {
		floats.Scale(1/total, f.importance)
	}
	return nil
}

// PredictProba averages the leaf class-1 fractions over the trees
func (f *RandomForest) PredictProba(x []float64) (float64, error) {
	if len(f.forest) == 0 {
		return 0, errors.New("random forest is not fitted")
	}
	if len(x) != f.features {
		return 0, fmt.Errorf("expected %d features, got %d", f.features, len(x))
	}
	sum := 0.0
	for _, tree := range f.forest {
		node := tree
		for !node.leaf {
			if x[node.feature] <= node.threshold {
				node = node.left
			} else {
				node = node.right
			}
		}
		sum += node.prob
	}
	return sum / float64(len(f.forest)), nil
}

// Importance is the mean impurity decrease per feature, normalized to sum to one
func (f *RandomForest) Importance() []float64 {
	return append([]float64(nil), f.importance...)
}

type grower struct {
	rows       [][]float64
	y          []float64
	rng        *rand.Rand
	tries      int
	importance []float64
}

func (g *grower) grow(idx []int) *treeNode {
	pos := 0.0
	for _, i := range idx {
		pos += g.y[i]
	}
	n := float64(len(idx))
	prob := pos / n
	if len(idx) < 2 || pos == 0 || pos == n {
		return &treeNode{leaf: true, prob: prob}
	}

	cut, ok := g.bestSplit(idx, gini(pos, n))
	if !ok {
		return &treeNode{leaf: true, prob: prob}
	}

	var left, right []int
	for _, i := range idx {
		if g.rows[i][cut.feature] <= cut.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	g.importance[cut.feature] += cut.decrease

	return &treeNode{
		feature:   cut.feature,
		threshold: cut.threshold,
		left:      g.grow(left),
		right:     g.grow(right),
	}
}

type candidate struct {
	feature   int
	threshold float64
	decrease  float64
}

// bestSplit examines random features until tries have been drawn and a valid
// split exists, or every feature has been seen
func (g *grower) bestSplit(idx []int, parent float64) (candidate, bool) {
	best := candidate{decrease: -1}
	found := false
	n := float64(len(idx))

	order := g.rng.Perm(len(g.importance))
	for k, feature := range order {
		if k >= g.tries && found {
			break
		}

		sorted := append([]int(nil), idx...)
		sort.Slice(sorted, func(a, b int) bool {
			return g.rows[sorted[a]][feature] < g.rows[sorted[b]][feature]
		})

		total := 0.0
		for _, i := range sorted {
			total += g.y[i]
		}
		leftPos := 0.0
		for s := 1; s < len(sorted); s++ {
			leftPos += g.y[sorted[s-1]]
			lo, hi := g.rows[sorted[s-1]][feature], g.rows[sorted[s]][feature]
			if lo == hi {
				continue
			}
			nl, nr := float64(s), n-float64(s)
			child := (nl*gini(leftPos, nl) + nr*gini(total-leftPos, nr)) / n
			decrease := n * (parent - child)
			if decrease > best.decrease {
				best = candidate{feature: feature, threshold: (lo + hi) / 2, decrease: decrease}
				found = true
			}
		}
	}
	return best, found
}

func gini(pos, n float64) float64 {
	if n == 0 {
		return 0
	}
	p := pos / n
	return 1 - p*p - (1-p)*(1-p)
}
