package solver

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/nqba/qih/pkg/core"
)

// NewTabu returns the built-in classical QUBO fallback: a random-restart
// greedy descent sampler. It exists so a deployment without a quantum
// backend can still serve "qubo" jobs; it makes no optimality promises.
func NewTabu() Solver {
	return &Func{
		SolverName:  "tabu",
		SolverClass: core.SolverClassical,
		Operations:  []string{"qubo"},
		Fn:          solveQUBO,
	}
}

const defaultReads = 10

// solveQUBO minimizes sum_i h_i x_i + sum_{i<j} J_ij x_i x_j over x in {0,1}^n.
//
// Expected inputs:
//
//	"linear":    {"x0": -1.0, "x1": 0.5, ...}
//	"quadratic": {"x0,x1": 2.0, ...}
//	"num_reads": 10 (optional)
func solveQUBO(ctx context.Context, inputs map[string]any) (*Result, error) {
	linear, err := toBiases(inputs["linear"])
	if err != nil {
		return nil, fmt.Errorf("linear terms: %w", err)
	}

	type coupling struct {
		u, v string
		w    float64
	}
	var quadratic []coupling
	if q, ok := inputs["quadratic"].(map[string]any); ok {
		for key, raw := range q {
			u, v, ok := strings.Cut(key, ",")
			if !ok {
				return nil, fmt.Errorf("quadratic key %q: want \"u,v\"", key)
			}
			w, ok := toFloat(raw)
			if !ok {
				return nil, fmt.Errorf("quadratic weight for %q is not a number", key)
			}
			quadratic = append(quadratic, coupling{strings.TrimSpace(u), strings.TrimSpace(v), w})
		}
	}

	vars := map[string]int{}
	for name := range linear {
		vars[name] = 0
	}
	for _, c := range quadratic {
		vars[c.u] = 0
		vars[c.v] = 0
	}
	if len(vars) == 0 {
		return nil, fmt.Errorf("empty problem")
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		vars[name] = i
	}

	energy := func(x []int) float64 {
		var e float64
		for name, h := range linear {
			e += h * float64(x[vars[name]])
		}
		for _, c := range quadratic {
			e += c.w * float64(x[vars[c.u]]*x[vars[c.v]])
		}
		return e
	}

	reads := int64(defaultReads)
	if n, ok := toFloat(inputs["num_reads"]); ok && n > 0 {
		reads = int64(n)
	}

	best := make([]int, len(names))
	bestE := energy(best)

	x := make([]int, len(names))
	for read := int64(0); read < reads; read++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		for i := range x {
			x[i] = rand.Intn(2)
		}
		curE := energy(x)

		// Single-flip descent to a local minimum.
		for improved := true; improved; {
			improved = false
			for i := range x {
				x[i] ^= 1
				if e := energy(x); e < curE {
					curE = e
					improved = true
				} else {
					x[i] ^= 1
				}
			}
		}

		if curE < bestE {
			bestE = curE
			copy(best, x)
		}
	}

	solution := make(map[string]any, len(names))
	for name, i := range vars {
		solution[name] = best[i]
	}

	return &Result{
		Solution:       solution,
		ObjectiveValue: bestE,
		Reads:          reads,
		ProblemsSolved: 1,
	}, nil
}

func toBiases(raw any) (map[string]float64, error) {
	out := map[string]float64{}
	m, ok := raw.(map[string]any)
	if !ok {
		if raw == nil {
			return out, nil
		}
		return nil, fmt.Errorf("want object, got %T", raw)
	}
	for name, v := range m {
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("bias for %q is not a number", name)
		}
		out[name] = f
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
