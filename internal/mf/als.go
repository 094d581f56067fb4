package mf

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/domain/dataset"
)

// Options tune the solver without changing the model family.
type Options struct {
	// Workers bounds the goroutines solving rows in parallel (default: GOMAXPROCS).
	Workers int
	// Seed makes factor initialization reproducible (0 picks 42).
	Seed int64
}

type entry struct {
	idx   int
	value float64
}

// Train fits a model on every rating of ds.
// It returns domain.ErrEmptyDataset when ds has no ratings and ctx.Err() when
// the context ends between half-iterations.
func Train(ctx context.Context, ds *dataset.Dataset, hp domain.Hyperparams, opts Options) (*Model, error) {
	if err := hp.Validate(); err != nil {
		return nil, fmt.Errorf("hyperparams: %w", err)
	}
	if ds.Empty() {
		return nil, domain.ErrEmptyDataset
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}

	m := newModel(ds, hp)
	byUser := make([][]entry, len(m.userIDs))
	byItem := make([][]entry, len(m.itemIDs))
	for _, r := range ds.Ratings() {
		u := m.userIndex[r.UserID()]
		i := m.itemIndex[r.ItemID()]
		byUser[u] = append(byUser[u], entry{idx: i, value: r.Score()})
		byItem[i] = append(byItem[i], entry{idx: u, value: r.Score()})
	}
	m.seen = make([][]int, len(byUser))
	for u, row := range byUser {
		seen := make([]int, len(row))
		for k, e := range row {
			seen[k] = e.idx
		}
		m.seen[u] = seen
	}

	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // deterministic init, not security sensitive
	m.userFactors = randomFactors(rng, len(m.userIDs), hp.Rank)
	m.itemFactors = randomFactors(rng, len(m.itemIDs), hp.Rank)

	for iter := 0; iter < hp.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := solveRows(ctx, m.userFactors, m.itemFactors, byUser, hp, opts.Workers); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := solveRows(ctx, m.itemFactors, m.userFactors, byItem, hp, opts.Workers); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RMSE returns the root mean squared error of the model over ds, skipping unknown pairs.
func RMSE(m *Model, ds *dataset.Dataset) float64 {
	var sum float64
	var n int
	for _, r := range ds.Ratings() {
		p, ok := m.Predict(r.UserID(), r.ItemID())
		if !ok {
			continue
		}
		d := p - r.Score()
		sum += d * d
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

func randomFactors(rng *rand.Rand, rows, rank int) [][]float64 {
	scale := 1 / math.Sqrt(float64(rank))
	out := make([][]float64, rows)
	for r := range out {
		v := make([]float64, rank)
		for f := range v {
			v[f] = math.Abs(rng.NormFloat64()) * scale
		}
		out[r] = v
	}
	return out
}

// solveRows recomputes every row of target with fixed held constant.
func solveRows(
	ctx context.Context,
	target, fixed [][]float64,
	observed [][]entry,
	hp domain.Hyperparams,
	workers int,
) error {
	rows := len(target)
	chunk := (rows + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < rows; start += chunk {
		end := min(start+chunk, rows)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a := newMatrix(hp.Rank)
			b := make([]float64, hp.Rank)
			for row := start; row < end; row++ {
				target[row] = solveRow(a, b, fixed, observed[row], hp)
			}
			return nil
		})
	}
	return g.Wait() //nolint:wrapcheck // only ctx errors travel here
}

// solveRow builds A = sum y y' + lambda*n*I and b = sum r*y, then solves A x = b.
// a and b are scratch buffers reused across rows.
func solveRow(a [][]float64, b []float64, fixed [][]float64, observed []entry, hp domain.Hyperparams) []float64 {
	rank := hp.Rank
	for f := 0; f < rank; f++ {
		clear(a[f])
		b[f] = 0
	}
	for _, e := range observed {
		y := fixed[e.idx]
		for f1 := 0; f1 < rank; f1++ {
			for f2 := f1; f2 < rank; f2++ {
				a[f1][f2] += y[f1] * y[f2]
			}
			b[f1] += e.value * y[f1]
		}
	}
	reg := hp.Regularization * float64(len(observed))
	for f1 := 0; f1 < rank; f1++ {
		a[f1][f1] += reg
		for f2 := 0; f2 < f1; f2++ {
			a[f1][f2] = a[f2][f1]
		}
	}
	return choleskySolve(a, b)
}

func newMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}

// choleskySolve solves A x = b for symmetric A. Non positive-definite pivots are
// clamped so rank-deficient rows (e.g. lambda = 0) still yield a finite answer.
func choleskySolve(a [][]float64, b []float64) []float64 {
	n := len(b)
	l := newMatrix(n)

	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 1e-12 {
					sum = 1e-12
				}
				l[i][j] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}

	z := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for j := 0; j < i; j++ {
			sum -= l[i][j] * z[j]
		}
		z[i] = sum / l[i][i]
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := z[i]
		for j := i + 1; j < n; j++ {
			sum -= l[j][i] * x[j]
		}
		x[i] = sum / l[i][i]
	}
	return x
}
