package taskgraph

// These constants are verified via unit tests.
const (
	// sizeOfCacheLine is the size of a CPU cache line.
	// 64 bytes is standard for x86-64; 128 bytes covers Apple Silicon and
	// other ARM64 parts with room to spare. We pad to the larger value so
	// hot refcounts on ContinuationVertex and DynamicState never share a
	// cache line with a neighbouring allocation.
	sizeOfCacheLine = 128
)
