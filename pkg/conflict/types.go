// Package conflict implements the Conflict subsystem: three-way merge
// detection between two in-flight proposals touching overlapping nodes,
// and resolution-strategy generation over the resulting field conflicts
// (spec.md §1 "three-way merge", feature supplement #3).
package conflict

// Report is a ConflictReport (feature supplement #3): the three-way diff
// result against the common-ancestor version of a node.
type Report struct {
	ConflictingFields   []string `json:"conflicting_fields"`
	AutoMergeable       bool     `json:"auto_mergeable"`
	SuggestedResolution string   `json:"suggested_resolution"`
}
