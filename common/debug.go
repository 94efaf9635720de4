package common

import (
	"github.com/davecgh/go-spew/spew"
)

var spewConfig *spew.ConfigState

func init() {
	spewConfig = spew.NewDefaultConfig()
	spewConfig.DisableCapacities = true
	spewConfig.DisablePointerAddresses = true
	spewConfig.SortKeys = true
}

// Sdump renders the given values as an indented, deterministic debug string.
// Slice capacities and pointer addresses are omitted so dumps are stable between runs.
//
// Parameters:
//   - a: the values to dump
//
// Returns:
//   - string: the formatted dump
func Sdump(a ...any) string {
	return spewConfig.Sdump(a...)
}
