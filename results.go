package lineage

import "sort"

// Operation tags the analysis that produced a registered result.
type Operation string

const (
	OpFateMap       Operation = "fate_map"
	OpFatePotency   Operation = "fate_potency"
	OpFateCoupling  Operation = "fate_coupling"
	OpFateBias      Operation = "fate_bias"
	OpFateHierarchy Operation = "fate_hierarchy"
	OpTrajectory    Operation = "differentiation_trajectory"
)

// ResultKey identifies one registered result: which operation produced it
// and which source matrix it was computed from.
type ResultKey struct {
	Op     Operation
	Source string
}

// Results stores operation outputs keyed by their source, one slot per
// (operation, source) pair. Re-running an operation on the same source
// replaces the previous entry. Registration happens only after an
// operation has fully succeeded, so a failed run never leaves a partial
// result behind.
type Results struct {
	fateMaps     map[string]*MapResult
	potencies    map[string]*PotencyResult
	couplings    map[string]*CouplingResult
	biases       map[string]*BiasResult
	hierarchies  map[string]*HierarchyResult
	trajectories map[string]*TrajectoryResult
}

func newResults() *Results {
	return &Results{
		fateMaps:     make(map[string]*MapResult),
		potencies:    make(map[string]*PotencyResult),
		couplings:    make(map[string]*CouplingResult),
		biases:       make(map[string]*BiasResult),
		hierarchies:  make(map[string]*HierarchyResult),
		trajectories: make(map[string]*TrajectoryResult),
	}
}

// FateMap returns the fate map computed from the named source.
func (r *Results) FateMap(source string) (*MapResult, bool) {
	res, ok := r.fateMaps[source]
	return res, ok
}

// FatePotency returns the potency scores computed from the named source.
func (r *Results) FatePotency(source string) (*PotencyResult, bool) {
	res, ok := r.potencies[source]
	return res, ok
}

// FateCoupling returns the coupling matrix computed from the named source.
func (r *Results) FateCoupling(source string) (*CouplingResult, bool) {
	res, ok := r.couplings[source]
	return res, ok
}

// FateBias returns the bias vector computed from the named source.
func (r *Results) FateBias(source string) (*BiasResult, bool) {
	res, ok := r.biases[source]
	return res, ok
}

// FateHierarchy returns the hierarchy computed from the named source.
func (r *Results) FateHierarchy(source string) (*HierarchyResult, bool) {
	res, ok := r.hierarchies[source]
	return res, ok
}

// Trajectory returns the trajectory groups computed from the named source.
func (r *Results) Trajectory(source string) (*TrajectoryResult, bool) {
	res, ok := r.trajectories[source]
	return res, ok
}

// Keys lists every registered (operation, source) pair, sorted by
// operation then source.
func (r *Results) Keys() []ResultKey {
	var keys []ResultKey
	for source := range r.fateMaps {
		keys = append(keys, ResultKey{OpFateMap, source})
	}
	for source := range r.potencies {
		keys = append(keys, ResultKey{OpFatePotency, source})
	}
	for source := range r.couplings {
		keys = append(keys, ResultKey{OpFateCoupling, source})
	}
	for source := range r.biases {
		keys = append(keys, ResultKey{OpFateBias, source})
	}
	for source := range r.hierarchies {
		keys = append(keys, ResultKey{OpFateHierarchy, source})
	}
	for source := range r.trajectories {
		keys = append(keys, ResultKey{OpTrajectory, source})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Op != keys[j].Op {
			return keys[i].Op < keys[j].Op
		}
		return keys[i].Source < keys[j].Source
	})
	return keys
}

func (r *Results) putFateMap(source string, res *MapResult)           { r.fateMaps[source] = res }
func (r *Results) putFatePotency(source string, res *PotencyResult)   { r.potencies[source] = res }
func (r *Results) putFateCoupling(source string, res *CouplingResult) { r.couplings[source] = res }
func (r *Results) putFateBias(source string, res *BiasResult)         { r.biases[source] = res }
func (r *Results) putFateHierarchy(source string, res *HierarchyResult) {
	r.hierarchies[source] = res
}
func (r *Results) putTrajectory(source string, res *TrajectoryResult) { r.trajectories[source] = res }
