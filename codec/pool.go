package codec

import "sync"

const (
	poolInitCap = 256
	poolMaxCap  = 64 << 10
)

var bufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, poolInitCap)
		return &buf
	},
}

func getBuf() *[]byte {
	return bufPool.Get().(*[]byte)
}

func putBuf(buf *[]byte) {
	if buf == nil || cap(*buf) > poolMaxCap {
		return
	}
	*buf = (*buf)[:0]
	bufPool.Put(buf)
}
