package lineage

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
)

// HierarchyOptions configures FateHierarchy. Start from
// DefaultHierarchyOptions and override what you need.
type HierarchyOptions struct {
	// Fates must name at least two clusters. Unlike the other operations,
	// a nil list is rejected rather than expanded to every label.
	Fates []FateSpec

	// Source names the input as in CouplingOptions. Defaults to
	// CloneSource.
	Source string

	// SelectedTimes restricts the contributing cells as in
	// CouplingOptions.
	SelectedTimes []float64

	// Method tags the kernel normalization. Defaults to CouplingSW.
	Method CouplingMethod

	// MapMode is the fate-map aggregation used when Source is a transition
	// map. Defaults to AggregateSum.
	MapMode AggregateMode

	// Kernel condenses each round's data into a coupling matrix.
	// Defaults to NormalizedCovariance.
	Kernel CouplingKernel

	// Logger receives progress and data warnings. nil means slog.Default.
	// Per-round coupling computations are silenced regardless.
	Logger *slog.Logger
}

// DefaultHierarchyOptions returns the canonical FateHierarchy
// configuration.
func DefaultHierarchyOptions() HierarchyOptions {
	return HierarchyOptions{
		Source:  CloneSource,
		Method:  CouplingSW,
		MapMode: AggregateSum,
	}
}

// MergeStep records one greedy merge round.
type MergeStep struct {
	// Coupling is the coupling matrix over the round's active nodes,
	// snapshotted before the lower triangle is masked.
	Coupling *mat.Dense

	// Pair holds the merged row and column positions within NodeNames.
	Pair [2]int

	// NodeNames lists the active node ids entering the round.
	NodeNames []int
}

// HierarchyResult is a registered fate hierarchy. Leaves are numbered
// 0..len(FateNames)-1 in resolution order; merged nodes continue upward
// from there, one per round, with the root last.
type HierarchyResult struct {
	Source string
	Method CouplingMethod

	// ParentMap gives the parent of every non-root node.
	ParentMap map[int]int

	// NodeGroups lists, for every non-root node, the leaf ids it subsumes.
	// Leaves map to themselves; the root implicitly covers every leaf.
	NodeGroups map[int][]int

	// NodeMapping translates NodeGroups into fate names.
	NodeMapping map[int][]string

	// FateNames are the resolved mega-cluster names, indexed by leaf id.
	FateNames []string

	// Root is the synthetic top node joining whatever remains after the
	// merge loop.
	Root int

	// History records the merge rounds in order.
	History []MergeStep
}

// FateHierarchy reconstructs a binary-ish fate tree by greedily merging the
// most strongly coupled pair of clusters, recomputing the coupling over the
// merged groups each round, and registers the result under the source name.
func FateHierarchy(ds *Dataset, opts HierarchyOptions) (*HierarchyResult, error) {
	applyHierarchyDefaults(&opts)
	if err := validateHierarchyOptions(&opts); err != nil {
		return nil, err
	}
	if len(opts.Fates) < 2 {
		return nil, fmt.Errorf("%w: hierarchy needs at least two fate specs, got %d",
			ErrInvalidSelection, len(opts.Fates))
	}
	log := orDefault(opts.Logger)
	copts := CouplingOptions{
		Source:        opts.Source,
		SelectedTimes: opts.SelectedTimes,
		Method:        opts.Method,
		MapMode:       opts.MapMode,
		Kernel:        opts.Kernel,
	}
	applyCouplingDefaults(&copts)

	groups, err := resolveLeafGroups(ds, opts.Fates, &copts, log)
	if err != nil {
		return nil, err
	}
	if groups.Len() < 2 {
		return nil, fmt.Errorf("%w: selection resolved to %d cluster(s)",
			ErrInvalidSelection, groups.Len())
	}

	n := groups.Len()
	fateNames := groups.Names
	nodeNames := make([]int, n)
	nodeGroups := make(map[int][]int, 2*n)
	for i := 0; i < n; i++ {
		nodeNames[i] = i
		nodeGroups[i] = []int{i}
	}
	working := make([][]string, n)
	copy(working, groups.Labels)
	parentMap := make(map[int]int, 2*n)
	nextNode := n
	var history []MergeStep

	for len(nodeNames) > 2 {
		y, _, err := couplingMatrix(ds, mergedSpecs(working), &copts, nopLogger())
		if err != nil {
			return nil, err
		}
		snapshot := mat.DenseCopyOf(y)
		x := mat.DenseCopyOf(y)
		floor := mat.Min(x) - 100
		k := len(nodeNames)
		for i := 0; i < k; i++ {
			for j := 0; j <= i; j++ {
				x.Set(i, j, floor)
			}
		}
		ii, jj := mergeCandidates(x)
		history = append(history, MergeStep{
			Coupling:  snapshot,
			Pair:      [2]int{ii, jj},
			NodeNames: append([]int(nil), nodeNames...),
		})

		merged := append(append([]int(nil), nodeGroups[nodeNames[ii]]...), nodeGroups[nodeNames[jj]]...)
		nodeGroups[nextNode] = merged
		parentMap[nodeNames[ii]] = nextNode
		parentMap[nodeNames[jj]] = nextNode

		at := ii
		if jj < ii {
			at = jj
		}
		var keepNames []int
		var keepLabels [][]string
		for p, id := range nodeNames {
			if p == ii || p == jj {
				continue
			}
			keepNames = append(keepNames, id)
			keepLabels = append(keepLabels, working[p])
		}
		if len(keepNames) == 0 {
			// unreachable while the loop requires more than two nodes
			break
		}
		mergedLabels := append(append([]string(nil), working[ii]...), working[jj]...)
		nodeNames = insertInt(keepNames, at, nextNode)
		working = insertLabels(keepLabels, at, mergedLabels)
		nextNode++
	}

	root := nextNode
	for _, id := range nodeNames {
		parentMap[id] = root
	}
	nodeMapping := make(map[int][]string, len(nodeGroups))
	for id, leaves := range nodeGroups {
		names := make([]string, len(leaves))
		for i, leaf := range leaves {
			names[i] = fateNames[leaf]
		}
		nodeMapping[id] = names
	}

	res := &HierarchyResult{
		Source:      opts.Source,
		Method:      opts.Method,
		ParentMap:   parentMap,
		NodeGroups:  nodeGroups,
		NodeMapping: nodeMapping,
		FateNames:   fateNames,
		Root:        root,
		History:     history,
	}
	ds.results.putFateHierarchy(opts.Source, res)
	log.Info("fate hierarchy built",
		"source", opts.Source,
		"leaves", n,
		"rounds", len(history))
	return res, nil
}

func applyHierarchyDefaults(o *HierarchyOptions) {
	if o.Source == "" {
		o.Source = CloneSource
	}
	if o.Method == "" {
		o.Method = CouplingSW
	}
	if o.MapMode == "" {
		o.MapMode = AggregateSum
	}
}

func validateHierarchyOptions(o *HierarchyOptions) error {
	switch o.MapMode {
	case AggregateSum, AggregateNormSum:
	default:
		return fmt.Errorf("lineage: unknown aggregate mode %q", o.MapMode)
	}
	return nil
}

// resolveLeafGroups resolves the hierarchy's leaves exactly as a coupling
// over the same source would, without assembling any matrix data.
func resolveLeafGroups(ds *Dataset, fates []FateSpec, opts *CouplingOptions, log *slog.Logger) (*FateGroups, error) {
	if opts.Source == CloneSource {
		cells, err := cloneCells(ds, opts.SelectedTimes, log)
		if err != nil {
			return nil, err
		}
		return resolveGroups(ds.statesAt(cells), fates, opts.Source)
	}
	if _, err := ds.TransitionMap(opts.Source); err != nil {
		return nil, err
	}
	return resolveGroups(ds.statesAt(ds.cellIDT2), fates, opts.Source)
}

// mergeCandidates picks the merge pair from the masked coupling: ii is the
// row whose largest entry is the biggest of all row maxima, jj the column
// whose largest entry is the biggest of all column maxima. The two scans
// are independent; this is not the row and column of the single largest
// entry. Ties keep the first candidate, and with the lower triangle masked
// the pair always satisfies ii < jj.
func mergeCandidates(x *mat.Dense) (ii, jj int) {
	r, c := x.Dims()
	best := math.Inf(-1)
	for i := 0; i < r; i++ {
		m := math.Inf(-1)
		for j := 0; j < c; j++ {
			if v := x.At(i, j); v > m {
				m = v
			}
		}
		if m > best {
			best, ii = m, i
		}
	}
	best = math.Inf(-1)
	for j := 0; j < c; j++ {
		m := math.Inf(-1)
		for i := 0; i < r; i++ {
			if v := x.At(i, j); v > m {
				m = v
			}
		}
		if m > best {
			best, jj = m, j
		}
	}
	return ii, jj
}

// mergedSpecs turns working label groups into one Merged spec each.
func mergedSpecs(working [][]string) []FateSpec {
	specs := make([]FateSpec, len(working))
	for i, labels := range working {
		specs[i] = Merged(labels...)
	}
	return specs
}

// insertInt returns s with v inserted at position at.
func insertInt(s []int, at, v int) []int {
	out := make([]int, 0, len(s)+1)
	out = append(out, s[:at]...)
	out = append(out, v)
	return append(out, s[at:]...)
}

// insertLabels returns s with group inserted at position at.
func insertLabels(s [][]string, at int, group []string) [][]string {
	out := make([][]string, 0, len(s)+1)
	out = append(out, s[:at]...)
	out = append(out, group)
	return append(out, s[at:]...)
}
