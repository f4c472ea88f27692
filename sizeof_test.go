package taskgraph

import (
	"runtime"
	"testing"
	"unsafe"
)

func TestSizeOfCacheLine(t *testing.T) {
	if got := unsafe.Sizeof(struct{ _ [sizeOfCacheLine]byte }{}); got != sizeOfCacheLine {
		t.Fatalf("sizeOfCacheLine constant and struct size disagree: %d", got)
	}
	// Padding must be at least as large as any real cache line width in
	// common use, or false-sharing protection degrades silently.
	if sizeOfCacheLine < 64 {
		t.Fatalf("sizeOfCacheLine too small for %s/%s", runtime.GOOS, runtime.GOARCH)
	}
}
