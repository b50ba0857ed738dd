package state

import "github.com/davecgh/go-spew/spew"

var debugConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// DebugString renders s for diagnostic logging, grounded on glee's use
// of go-spew to print execution states on branch/fork trace lines.
func (s *State) DebugString() string {
	if s == nil {
		return "<nil state>"
	}
	return debugConfig.Sdump(s)
}

// DebugString renders h for diagnostic logging.
func (h *Heap) DebugString() string {
	if h == nil {
		return "<nil heap>"
	}
	return debugConfig.Sdump(h.Chunks())
}
