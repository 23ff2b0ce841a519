package util

import "sync"

// bufPool hands out DefaultBufSize buffers to pumps so that the many
// short-lived sessions of a keep-open listener do not churn the GC.
var bufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return bufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool.  Undersized buffers are dropped.
func PutBuf(buf *[]byte) {
	if buf == nil || cap(*buf) < DefaultBufSize {
		return
	}
	*buf = (*buf)[:DefaultBufSize]
	bufPool.Put(buf)
}
