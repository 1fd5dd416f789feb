package bufpool

import "sync"

// maxPooledCap keeps one oversized transcode from pinning a large buffer in the pool.
const maxPooledCap = 64 * 1024

var bufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 256)
		return &buf
	},
}

// Acquire obtains a zero-length scratch buffer with at least sizeHint bytes of capacity.
//
//go:inline
func Acquire(sizeHint int) *[]byte {
	buf := bufPool.Get().(*[]byte)
	if cap(*buf) < sizeHint {
		*buf = make([]byte, 0, sizeHint)
	}
	*buf = (*buf)[:0]
	return buf
}

// Release returns buf to the pool. Buffers that grew past maxPooledCap are dropped.
//
//go:inline
func Release(buf *[]byte) {
	if buf == nil {
		return
	}
	if cap(*buf) > maxPooledCap {
		return
	}
	*buf = (*buf)[:0]
	bufPool.Put(buf)
}
