package lineage

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultSource is the conventional name of the primary transition map.
	DefaultSource = "transition_map"

	// CloneSource is the reserved source tag that selects the clonal
	// barcode matrix instead of a registered transition map.
	CloneSource = "X_clone"
)

// Dataset is an annotated cell table: a categorical state label and a time
// point per cell, plus optional transition maps, a cell-by-clone matrix and
// a 2-D embedding. Operations read the inputs and register their output in
// the typed results registry; the inputs themselves are never modified.
//
// A Dataset is not safe for concurrent use. Callers running operations on
// the same dataset from multiple goroutines must synchronize externally.
type Dataset struct {
	states []string
	times  []float64

	// cellIDT1/cellIDT2 map transition-map rows and columns back into the
	// cell table. They are shared by every registered map.
	cellIDT1 []int
	cellIDT2 []int
	maps     map[string]mat.Matrix

	clones    mat.Matrix
	embedding mat.Matrix

	results *Results
}

// NewDataset builds a dataset from per-cell state labels and time points.
// The two slices must be non-empty and of equal length; they are retained,
// not copied, and must not be mutated afterwards.
func NewDataset(states []string, times []float64) (*Dataset, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("lineage: dataset needs at least one cell")
	}
	if len(states) != len(times) {
		return nil, fmt.Errorf("lineage: %d state labels but %d time points", len(states), len(times))
	}
	return &Dataset{
		states:  states,
		times:   times,
		maps:    make(map[string]mat.Matrix),
		results: newResults(),
	}, nil
}

// Len returns the number of cells.
func (d *Dataset) Len() int { return len(d.states) }

// States returns the per-cell state labels. The slice is shared, not copied.
func (d *Dataset) States() []string { return d.states }

// Times returns the per-cell time points. The slice is shared, not copied.
func (d *Dataset) Times() []float64 { return d.times }

// Results returns the typed results registry for this dataset.
func (d *Dataset) Results() *Results { return d.results }

// SetTransitionIndices registers the row (earlier) and column (later) cell
// ids shared by all transition maps. Both must be non-empty and in range.
func (d *Dataset) SetTransitionIndices(t1, t2 []int) error {
	if len(t1) == 0 || len(t2) == 0 {
		return fmt.Errorf("lineage: transition indices must be non-empty")
	}
	for _, ids := range [][]int{t1, t2} {
		for _, id := range ids {
			if id < 0 || id >= len(d.states) {
				return fmt.Errorf("lineage: cell id %d out of range [0,%d)", id, len(d.states))
			}
		}
	}
	d.cellIDT1 = t1
	d.cellIDT2 = t2
	return nil
}

// CellIDT1 returns the row cell ids of the registered transition maps.
func (d *Dataset) CellIDT1() []int { return d.cellIDT1 }

// CellIDT2 returns the column cell ids of the registered transition maps.
func (d *Dataset) CellIDT2() []int { return d.cellIDT2 }

// AddTransitionMap registers a named transition map of shape
// (len(CellIDT1), len(CellIDT2)). Rows need not sum to one; operations
// normalize on the fly. Sparse implementations satisfying mat.NonZeroDoer
// are exploited where it matters.
func (d *Dataset) AddTransitionMap(name string, m mat.Matrix) error {
	if name == "" || name == CloneSource {
		return fmt.Errorf("lineage: invalid transition map name %q", name)
	}
	if d.cellIDT1 == nil {
		return fmt.Errorf("lineage: call SetTransitionIndices before AddTransitionMap")
	}
	r, c := m.Dims()
	if r != len(d.cellIDT1) || c != len(d.cellIDT2) {
		return fmt.Errorf("lineage: map %q is %dx%d, want %dx%d",
			name, r, c, len(d.cellIDT1), len(d.cellIDT2))
	}
	d.maps[name] = m
	return nil
}

// TransitionMap looks up a registered transition map by name.
func (d *Dataset) TransitionMap(name string) (mat.Matrix, error) {
	m, ok := d.maps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)",
			ErrUnknownSource, name, strings.Join(d.AvailableMaps(), ", "))
	}
	return m, nil
}

// AvailableMaps lists the registered transition-map names, sorted.
func (d *Dataset) AvailableMaps() []string {
	names := make([]string, 0, len(d.maps))
	for name := range d.maps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetClones registers the (cells × clones) clonal barcode matrix.
func (d *Dataset) SetClones(m mat.Matrix) error {
	r, _ := m.Dims()
	if r != len(d.states) {
		return fmt.Errorf("lineage: clone matrix has %d rows, want %d", r, len(d.states))
	}
	d.clones = m
	return nil
}

// Clones returns the clonal barcode matrix, or nil if none is set.
func (d *Dataset) Clones() mat.Matrix { return d.clones }

// SetEmbedding registers a 2-D embedding (cells × 2), consumed only by the
// optional rendering collaborator.
func (d *Dataset) SetEmbedding(m mat.Matrix) error {
	r, c := m.Dims()
	if r != len(d.states) || c != 2 {
		return fmt.Errorf("lineage: embedding is %dx%d, want %dx2", r, c, len(d.states))
	}
	d.embedding = m
	return nil
}

// Embedding returns the 2-D embedding, or nil if none is set.
func (d *Dataset) Embedding() mat.Matrix { return d.embedding }

// statesAt gathers the state labels of the given cells.
func (d *Dataset) statesAt(cells []int) []string {
	out := make([]string, len(cells))
	for i, id := range cells {
		out[i] = d.states[id]
	}
	return out
}

// timesAt gathers the time points of the given cells.
func (d *Dataset) timesAt(cells []int) []float64 {
	out := make([]float64, len(cells))
	for i, id := range cells {
		out[i] = d.times[id]
	}
	return out
}
