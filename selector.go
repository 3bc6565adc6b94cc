package lineage

import (
	"fmt"
	"sort"
	"strings"
)

// FateSpec selects fate clusters by state label: either a single cluster or
// several clusters merged into one mega-cluster. Build specs with Leaf and
// Merged; the zero value selects nothing.
type FateSpec struct {
	labels []string
}

// Leaf selects the single cluster carrying the given state label.
func Leaf(label string) FateSpec {
	return FateSpec{labels: []string{label}}
}

// Merged selects the union of the given state labels as one mega-cluster,
// named by joining the labels with "_".
func Merged(labels ...string) FateSpec {
	return FateSpec{labels: labels}
}

// Labels returns a copy of the selected state labels.
func (s FateSpec) Labels() []string {
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}

// FateGroups is a resolved fate selection over one annotation slice: for
// each mega-cluster its display name, the state labels it covers, a
// membership mask and the member positions within the annotation.
type FateGroups struct {
	Names   []string
	Labels  [][]string
	Masks   [][]bool
	Indices [][]int
}

// Len returns the number of mega-clusters.
func (g *FateGroups) Len() int { return len(g.Names) }

// SelectFateGroups resolves fate specs against per-cell state labels.
//
// A nil or empty spec list selects every distinct label, sorted, as its own
// mega-cluster. Labels absent from the annotation are dropped from each
// spec; a spec left empty after filtering is dropped entirely. Resolution
// fails with ErrInvalidSelection when a label appears in more than one spec
// or when every spec filters away.
func SelectFateGroups(states []string, specs []FateSpec) (*FateGroups, error) {
	known := make(map[string]bool, len(states))
	for _, s := range states {
		known[s] = true
	}
	if len(specs) == 0 {
		specs = allFateSpecs(known)
	}

	seen := make(map[string]bool)
	groups := &FateGroups{}
	for _, spec := range specs {
		var valid []string
		inSpec := make(map[string]bool)
		for _, label := range spec.labels {
			if !known[label] || inSpec[label] {
				continue
			}
			if seen[label] {
				return nil, fmt.Errorf("%w: label %q appears in more than one spec",
					ErrInvalidSelection, label)
			}
			inSpec[label] = true
			seen[label] = true
			valid = append(valid, label)
		}
		if len(valid) == 0 {
			continue
		}
		mask := make([]bool, len(states))
		var idx []int
		for i, s := range states {
			if inSpec[s] {
				mask[i] = true
				idx = append(idx, i)
			}
		}
		groups.Names = append(groups.Names, strings.Join(valid, "_"))
		groups.Labels = append(groups.Labels, valid)
		groups.Masks = append(groups.Masks, mask)
		groups.Indices = append(groups.Indices, idx)
	}
	if groups.Len() == 0 {
		return nil, errEmptySelection
	}
	return groups, nil
}

// allFateSpecs expands to one Leaf spec per distinct label, sorted.
func allFateSpecs(known map[string]bool) []FateSpec {
	labels := make([]string, 0, len(known))
	for label := range known {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	specs := make([]FateSpec, len(labels))
	for i, label := range labels {
		specs[i] = Leaf(label)
	}
	return specs
}

// selectTimePoints masks the cells whose time point matches one of the
// selected values. A nil selection keeps everything. Selected values that
// match no cell are returned in missing so callers can report them.
func selectTimePoints(times []float64, selected []float64) (mask []bool, missing []float64) {
	mask = make([]bool, len(times))
	if len(selected) == 0 {
		for i := range mask {
			mask[i] = true
		}
		return mask, nil
	}
	for _, t := range selected {
		hit := false
		for i, v := range times {
			if v == t {
				mask[i] = true
				hit = true
			}
		}
		if !hit {
			missing = append(missing, t)
		}
	}
	return mask, missing
}

// trueIndices returns the positions set in mask.
func trueIndices(mask []bool) []int {
	var idx []int
	for i, ok := range mask {
		if ok {
			idx = append(idx, i)
		}
	}
	return idx
}

// anyTrue reports whether at least one position is set.
func anyTrue(mask []bool) bool {
	for _, ok := range mask {
		if ok {
			return true
		}
	}
	return false
}
