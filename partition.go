package blaise

import "runtime"

// Range is the half-open index range [Lo, Hi).
type Range struct {
	Lo int
	Hi int
}

// Len returns the number of indices in r.
func (r Range) Len() int {
	return r.Hi - r.Lo
}

// Partition splits [0, n) into workers contiguous ranges. Every range holds n/workers items,
// except the last one, which also takes the n%workers remaining items. Ranges are empty when
// n < workers; callers avoid that by clamping workers with WorkerCount.
func Partition(n, workers int) []Range {
	if workers <= 0 || n < 0 {
		return nil
	}

	base := n / workers
	extra := n % workers

	ranges := make([]Range, workers)
	for i := range ranges {
		lo := i * base
		hi := lo + base
		if i == workers-1 {
			hi += extra
		}
		ranges[i] = Range{Lo: lo, Hi: hi}
	}
	return ranges
}

// WorkerCount returns the number of workers to use for n items: the requested count (all CPUs
// when requested <= 0), capped by the number of CPUs and by n.
func WorkerCount(requested, n int) int {
	w := runtime.NumCPU()
	if requested > 0 && requested < w {
		w = requested
	}
	if n < w {
		w = n
	}
	return w
}
