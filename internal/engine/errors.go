package engine

import "github.com/rotisserie/eris"

// ErrModelNotTrained is returned by quality evaluation when no trained
// classifier was loaded. It is a hard precondition failure: there is no
// rule-based fallback for quality scoring, and retrying without loading a
// model is never meaningful.
var ErrModelNotTrained = eris.New("engine: quality model not trained")
