package annotate

import (
	"strconv"

	"github.com/panodraw/annotator/pkg/core"
)

// IDSource hands out shape ids, one counter per kind. Share one source
// between successive Stores on the same viewer so a rebuilt Store never
// reissues an id whose hotspot is still live. Not safe for concurrent use.
type IDSource struct {
	counters map[core.ShapeKind]int
}

// NewIDSource creates a source starting at 1 for every kind.
func NewIDSource() *IDSource {
	return &IDSource{counters: make(map[core.ShapeKind]int)}
}

// Next returns the next id for kind, e.g. "poly_3".
func (g *IDSource) Next(kind core.ShapeKind) string {
	g.counters[kind]++
	return kind.IDPrefix() + strconv.Itoa(g.counters[kind])
}
