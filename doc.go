// Package lineage analyzes cell-fate choice in lineage-tracing experiments.
//
// The inputs are a transition map, a matrix of probabilities linking cells
// observed at an earlier time point to cells observed at a later one, and
// optionally a clonal barcode matrix linking cells to clones. From these
// the package computes per-cell fate probabilities, fate coupling between
// clusters, two-fate bias scores, ancestor trajectories and a greedy
// hierarchy of fates.
//
// Basic usage:
//
//	ds, err := lineage.NewDataset(states, times)
//	ds.SetTransitionIndices(t1, t2)
//	ds.AddTransitionMap(lineage.DefaultSource, tmap)
//	res, err := lineage.FateMap(ds, lineage.DefaultMapOptions())
//	// res.Probabilities.At(i, c) is the chance that row cell i ends up
//	// in fate cluster c
//	// res.CellColumn(c) expands cluster c into a dataset-length vector
//
// Fates are selected by state label, singly or merged:
//
//	opts := lineage.DefaultBiasOptions()
//	opts.Fates = []lineage.FateSpec{
//		lineage.Leaf("Neutrophil"),
//		lineage.Merged("Monocyte", "Macrophage"),
//	}
//	bias, err := lineage.FateBias(ds, opts)
//
// # Sources
//
// Every operation reads one named source. Transition maps are registered
// with Dataset.AddTransitionMap; the reserved name CloneSource selects the
// clonal barcode matrix instead, which FateHierarchy uses by default.
// Results land in the dataset's typed registry, keyed by the source they
// were computed from:
//
//	coupling, ok := ds.Results().FateCoupling(lineage.CloneSource)
package lineage
