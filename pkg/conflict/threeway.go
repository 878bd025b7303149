package conflict

// ThreeWayMerge computes a Report for two proposed field sets (left,
// right) diverging from a common ancestor. A field is conflicting when
// both sides changed it from the ancestor's value to two different
// values; a field changed on only one side merges cleanly and is not
// reported. Fields are compared as their JSON-decoded representation
// (map[string]any values from MutationProposal.ProposedChanges), so
// equality is Go's == over the decoded scalar/slice/map — callers should
// pass already-normalized values.
func ThreeWayMerge(ancestor, left, right map[string]any) *Report {
	fields := map[string]bool{}
	for k := range left {
		fields[k] = true
	}
	for k := range right {
		fields[k] = true
	}

	var conflicting []string
	for field := range fields {
		leftVal, leftChanged := left[field]
		rightVal, rightChanged := right[field]
		if !leftChanged || !rightChanged {
			continue // only one side touched this field: clean merge
		}
		ancestorVal := ancestor[field]
		if equal(leftVal, ancestorVal) || equal(rightVal, ancestorVal) {
			continue // one side is a no-op relative to ancestor
		}
		if !equal(leftVal, rightVal) {
			conflicting = append(conflicting, field)
		}
	}

	resolution := "no conflicting fields, clean three-way merge"
	if len(conflicting) > 0 {
		resolution = "manual resolution required for overlapping fields"
	}

	return &Report{
		ConflictingFields:   sortedCopy(conflicting),
		AutoMergeable:       len(conflicting) == 0,
		SuggestedResolution: resolution,
	}
}

func equal(a, b any) (eq bool) {
	// any comparison panics for non-comparable dynamic types (slices,
	// maps); treat those as always-conflicting rather than crashing.
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
