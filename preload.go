package texstream

// preloadCandidate is one frame the planner wants requested ahead of time.
type preloadCandidate struct {
	frame    int
	priority Priority
}

// planPreload computes which neighbors of current should be requested and at
// what priority: every index in [current-radius, current+radius] clamped to
// [0, totalFrames), excluding current itself. Direct neighbors (distance 1)
// are High, the rest Normal. The planner is stateless; the caller filters
// out frames that are already resident or in flight.
func planPreload(current, totalFrames, radius int) []preloadCandidate {
	if totalFrames <= 0 || radius <= 0 {
		return nil
	}

	lo := max(current-radius, 0)
	hi := min(current+radius, totalFrames-1)
	if lo > hi {
		return nil
	}

	out := make([]preloadCandidate, 0, hi-lo)
	for f := lo; f <= hi; f++ {
		if f == current {
			continue
		}
		p := PriorityNormal
		if f == current-1 || f == current+1 {
			p = PriorityHigh
		}
		out = append(out, preloadCandidate{frame: f, priority: p})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
