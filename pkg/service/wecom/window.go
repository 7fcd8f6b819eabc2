package wecom

import "time"

// Window is one inclusive [Start, End] query chunk in Unix seconds
type Window struct {
	Start int64
	End   int64
}

// SplitWindow cuts a logical [start, end] window into non-overlapping chunks
// of at most 31 days, with 1-second boundaries between consecutive chunks.
// A window already within the limit yields itself.
func SplitWindow(start, end int64) []Window {
	if end < start {
		return nil
	}

	maxSpan := int64(MaxWindow / time.Second)
	var windows []Window
	for chunkStart := start; chunkStart <= end; {
		chunkEnd := chunkStart + maxSpan
		if chunkEnd > end {
			chunkEnd = end
		}
		windows = append(windows, Window{Start: chunkStart, End: chunkEnd})
		if chunkEnd == end {
			break
		}
		chunkStart = chunkEnd + 1
	}
	return windows
}
