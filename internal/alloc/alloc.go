// Package alloc guards the large allocations a run makes up front so that a
// run which cannot get its memory is refused before any work starts.
package alloc

import (
	"errors"
	"fmt"
	"unsafe"
)

var ErrResourceExhaustion = errors.New("resource exhaustion")

// Slice allocates n zeroed elements. budget caps the byte size of the slice;
// zero disables the cap. Runtime length failures (makeslice panics) are
// reported as ErrResourceExhaustion. A genuine out-of-memory condition still
// aborts the process, since the runtime does not let it be recovered.
func Slice[T any](what string, n int, budget int64) (out []T, err error) {
	if n < 0 {
		return nil, fmt.Errorf("allocate %s: negative length %d: %w", what, n, ErrResourceExhaustion)
	}
	var zero T
	size := int64(unsafe.Sizeof(zero))
	if budget > 0 && size > 0 && int64(n) > budget/size {
		return nil, fmt.Errorf("allocate %s: %d elements of %d bytes exceed budget %d: %w", what, n, size, budget, ErrResourceExhaustion)
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("allocate %s: %v: %w", what, r, ErrResourceExhaustion)
		}
	}()
	return make([]T, n), nil
}

// Bytes reports the byte size of n elements of T.
func Bytes[T any](n int) int64 {
	var zero T
	return int64(n) * int64(unsafe.Sizeof(zero))
}
