package lineage

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"
)

// TrajectoryOptions configures DifferentiationTrajectory. Start from
// DefaultTrajectoryOptions and override what you need.
type TrajectoryOptions struct {
	// Fates must resolve to exactly two mega-clusters.
	Fates []FateSpec

	// Source, Direction, Mode and SelectedTimes configure the underlying
	// fate map as in MapOptions.
	Source        string
	Direction     Direction
	Mode          AggregateMode
	SelectedTimes []float64

	// BiasThresholdA is the bias a cell must exceed to join the first
	// fate's ancestor group. Zero means 0.5.
	BiasThresholdA float64

	// BiasThresholdB is the bias a cell must stay under to join the second
	// fate's ancestor group. Zero means 0.5.
	BiasThresholdB float64

	// SumProbThreshold is the raw two-fate mass a cell must exceed to be
	// assigned to either group. The default of zero keeps every cell with
	// positive mass.
	SumProbThreshold float64

	// PseudoCount scales the bias regularizer as in BiasOptions. Zero
	// means 1e-10.
	PseudoCount float64

	// AvoidTargetStates drops cells already labeled with a fate's own
	// states from that fate's ancestor group.
	AvoidTargetStates bool

	// Mask optionally restricts assignment to flagged cells. A length
	// other than the dataset's is reported and ignored.
	Mask []bool

	// Renderer, when set and the dataset has an embedding, draws the two
	// ancestor groups. Figure carries its parameters.
	Renderer EmbeddingRenderer
	Figure   FigureConfig

	// PlotTarget overlays each fate's own cells on its ancestor panel.
	PlotTarget bool

	// SaveFigure asks the renderer to also save the drawn panels.
	SaveFigure bool

	// Logger receives progress and data warnings. nil means slog.Default.
	Logger *slog.Logger
}

// DefaultTrajectoryOptions returns the canonical configuration.
func DefaultTrajectoryOptions() TrajectoryOptions {
	return TrajectoryOptions{
		Source:         DefaultSource,
		Direction:      DirectionForward,
		Mode:           AggregateNormSum,
		BiasThresholdA: 0.5,
		BiasThresholdB: 0.5,
		Figure:         DefaultFigureConfig(),
		PlotTarget:     true,
	}
}

func applyTrajectoryDefaults(o *TrajectoryOptions) {
	if o.Source == "" {
		o.Source = DefaultSource
	}
	if o.Direction == "" {
		o.Direction = DirectionForward
	}
	if o.Mode == "" {
		o.Mode = AggregateNormSum
	}
	if o.BiasThresholdA == 0 {
		o.BiasThresholdA = 0.5
	}
	if o.BiasThresholdB == 0 {
		o.BiasThresholdB = 0.5
	}
}

func validateTrajectoryOptions(o *TrajectoryOptions) error {
	if o.BiasThresholdA < 0 || o.BiasThresholdA > 1 {
		return fmt.Errorf("lineage: bias threshold A must be in [0,1], got %v", o.BiasThresholdA)
	}
	if o.BiasThresholdB < 0 || o.BiasThresholdB > 1 {
		return fmt.Errorf("lineage: bias threshold B must be in [0,1], got %v", o.BiasThresholdB)
	}
	if o.SumProbThreshold < 0 {
		return fmt.Errorf("lineage: sum-probability threshold must be >= 0, got %v", o.SumProbThreshold)
	}
	if o.PseudoCount < 0 {
		return fmt.Errorf("lineage: pseudo count must be >= 0, got %v", o.PseudoCount)
	}
	mo := MapOptions{Direction: o.Direction, Mode: o.Mode}
	return validateMapOptions(&mo)
}

// TrajectoryResult is a registered pair of ancestor groups and their
// per-fate trajectory codes.
type TrajectoryResult struct {
	Source    string
	Direction Direction

	// Names are the two resolved mega-cluster names.
	Names [2]string

	// GroupA and GroupB flag, over the whole dataset, the ancestor
	// candidates of the first and second fate.
	GroupA []bool
	GroupB []bool

	// Trajectories maps each fate name to a dataset-length code: the sum
	// of the cell's ancestor-group flag and its fate-membership flag, so 0
	// for unrelated cells, 1 for ancestors or members, 2 for both.
	Trajectories map[string][]int
}

// DifferentiationTrajectory splits the row cells into ancestor groups for
// two competing fates by thresholding their fate bias, assembles per-fate
// trajectory codes and registers the result under the source name.
func DifferentiationTrajectory(ds *Dataset, opts TrajectoryOptions) (*TrajectoryResult, error) {
	applyTrajectoryDefaults(&opts)
	if err := validateTrajectoryOptions(&opts); err != nil {
		return nil, err
	}
	if len(opts.Fates) != 2 {
		return nil, fmt.Errorf("%w: got %d fate specs", ErrInvalidFateCount, len(opts.Fates))
	}
	log := orDefault(opts.Logger)
	mopts := MapOptions{
		Fates:         opts.Fates,
		Source:        opts.Source,
		Direction:     opts.Direction,
		Mode:          opts.Mode,
		SelectedTimes: opts.SelectedTimes,
	}
	mres, err := computeFateMap(ds, &mopts, log)
	if err != nil {
		return nil, err
	}
	if mres.Groups.Len() != 2 {
		return nil, fmt.Errorf("%w: selection resolved to %d clusters",
			ErrInvalidFateCount, mres.Groups.Len())
	}

	spIdx := append([]bool(nil), mres.TimeMask...)
	if opts.Mask != nil {
		if len(opts.Mask) != ds.Len() {
			log.Warn("mask length does not match the dataset, ignoring it",
				"got", len(opts.Mask), "want", ds.Len())
		} else {
			for p, cell := range mres.RowCells {
				spIdx[p] = spIdx[p] && opts.Mask[cell]
			}
		}
	}
	if !anyTrue(spIdx) {
		return nil, fmt.Errorf("%w: time window and mask select no cell on %q",
			ErrNoValidCells, opts.Source)
	}

	pseudo := opts.PseudoCount
	if pseudo == 0 {
		pseudo = defaultPseudoCount
	}
	p := mres.Probabilities
	rows, _ := p.Dims()
	c0 := pseudo * mat.Max(p)

	idxA := make([]bool, rows)
	idxB := make([]bool, rows)
	for i := 0; i < rows; i++ {
		raw := p.At(i, 0) + p.At(i, 1)
		if raw <= opts.SumProbThreshold {
			continue
		}
		a := p.At(i, 0) + c0
		bias := a / (a + p.At(i, 1) + c0)
		idxA[i] = bias > opts.BiasThresholdA
		idxB[i] = bias < opts.BiasThresholdB
	}

	if opts.AvoidTargetStates {
		rowStates := ds.statesAt(mres.RowCells)
		unsetLabeled(idxA, rowStates, mres.Groups.Labels[0])
		unsetLabeled(idxB, rowStates, mres.Groups.Labels[1])
	}

	groupA := make([]bool, ds.Len())
	groupB := make([]bool, ds.Len())
	for pos, cell := range mres.RowCells {
		if spIdx[pos] {
			groupA[cell] = idxA[pos]
			groupB[cell] = idxB[pos]
		}
	}

	res := &TrajectoryResult{
		Source:    opts.Source,
		Direction: opts.Direction,
		Names:     [2]string{mres.Groups.Names[0], mres.Groups.Names[1]},
		GroupA:    groupA,
		GroupB:    groupB,
		Trajectories: map[string][]int{
			mres.Groups.Names[0]: trajectoryCodes(groupA, mres, 0),
			mres.Groups.Names[1]: trajectoryCodes(groupB, mres, 1),
		},
	}
	plotAncestorGroups(ds, &opts, res, mres, log)
	ds.results.putTrajectory(opts.Source, res)
	log.Info("differentiation trajectory computed",
		"source", opts.Source,
		"fates", res.Names[0]+" vs "+res.Names[1],
		"group_a", countTrue(groupA),
		"group_b", countTrue(groupB))
	return res, nil
}

// trajectoryCodes combines an ancestor group with the fate's own cells,
// mapped through the column cells into dataset coordinates.
func trajectoryCodes(group []bool, mres *MapResult, fate int) []int {
	codes := make([]int, len(group))
	for cell, in := range group {
		if in {
			codes[cell] = 1
		}
	}
	for _, pos := range mres.Groups.Indices[fate] {
		codes[mres.ColumnCells[pos]]++
	}
	return codes
}

// unsetLabeled clears flags at positions whose state carries one of the
// given labels.
func unsetLabeled(flags []bool, states []string, labels []string) {
	for _, label := range labels {
		for i, s := range states {
			if s == label {
				flags[i] = false
			}
		}
	}
}

// plotAncestorGroups draws one panel per ancestor group when a renderer
// and an embedding are available. Failures are logged, never returned.
func plotAncestorGroups(ds *Dataset, opts *TrajectoryOptions, res *TrajectoryResult, mres *MapResult, log *slog.Logger) {
	if opts.Renderer == nil {
		return
	}
	if ds.embedding == nil {
		log.Warn("renderer set but dataset has no embedding, skipping plot")
		return
	}
	x := mat.Col(nil, 0, ds.embedding)
	y := mat.Col(nil, 1, ds.embedding)
	groups := [2][]bool{res.GroupA, res.GroupB}
	for f := 0; f < 2; f++ {
		var target []bool
		if opts.PlotTarget {
			target = make([]bool, ds.Len())
			for _, pos := range mres.Groups.Indices[f] {
				target[mres.ColumnCells[pos]] = true
			}
		}
		title := fmt.Sprintf("ancestors of %s", res.Names[f])
		if err := opts.Renderer.Scatter(opts.Figure, x, y, groups[f], target, title); err != nil {
			log.Warn("ancestor plot failed", "fate", res.Names[f], "err", err)
			return
		}
	}
	if opts.SaveFigure {
		if err := opts.Renderer.Save(opts.Figure, "ancestor_state_groups"); err != nil {
			log.Warn("saving ancestor plot failed", "err", err)
		}
	}
}

// countTrue counts the set positions.
func countTrue(mask []bool) int {
	n := 0
	for _, ok := range mask {
		if ok {
			n++
		}
	}
	return n
}
