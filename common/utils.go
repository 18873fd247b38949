package common

import "fmt"

// Assert checks a condition and panics if it is false.
//
// Use it for conditions that can only fail when the kernel itself is broken, such as a slot index past the end
// of a page or a bitmap of the wrong size. Conditions caused by callers or by the disk (bad arguments, short
// reads, a full page) are reported as errors instead.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// CeilDiv returns ceil(n / d) for non-negative n and positive d.
func CeilDiv(n, d int) int {
	return (n + d - 1) / d
}
