// Package persist decides how an editor holds a file's bytes, loads them,
// saves them back and tracks whether there is anything to save.
package persist

import "github.com/dshills/bined/internal/segment"

// Strategy is how content is held while it is edited.
type Strategy int

const (
	// StrategyMemory reads the whole content into a buffer.
	StrategyMemory Strategy = iota

	// StrategyDelta layers a segment document over the file on disk.
	StrategyDelta
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyMemory:
		return "memory"
	case StrategyDelta:
		return "delta"
	default:
		return "unknown"
	}
}

// SelectInput is everything the storage selector looks at.
type SelectInput struct {
	HasLocalFile bool
	DeltaMode    bool
	Writable     bool

	// Size and LargeFileThreshold force delta mode for large local files
	// when DeltaMode is off. A zero threshold disables the check.
	Size               int64
	LargeFileThreshold int64
}

// Decision is the outcome of Select.
type Decision struct {
	Strategy Strategy
	Mode     segment.Mode // meaningful for StrategyDelta only
	Editable bool
}

// Select picks a storage strategy. It does no I/O.
func Select(in SelectInput) Decision {
	d := Decision{
		Strategy: StrategyMemory,
		Mode:     segment.ReadOnly,
		Editable: in.Writable,
	}
	if !in.HasLocalFile {
		return d
	}

	large := in.LargeFileThreshold > 0 && in.Size >= in.LargeFileThreshold
	if in.DeltaMode || large {
		d.Strategy = StrategyDelta
		if in.Writable {
			d.Mode = segment.ReadWrite
		}
	}
	return d
}
