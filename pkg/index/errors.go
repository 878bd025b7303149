package index

import "errors"

// ErrBackendUnavailable is returned by a primary Backend when it cannot
// serve a request (e.g. the vector store is unreachable). The Index
// degrades to the lexical fallback ranker automatically on this error,
// never raising it to the caller (spec.md §4.3(b)).
var ErrBackendUnavailable = errors.New("index: primary backend unavailable")
