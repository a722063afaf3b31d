package cookiesession

import (
	"bytes"
	"sync"
)

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

var idBufferPool = sync.Pool{
	New: func() any {
		// 16 bytes of entropy followed by their 32 hex characters.
		b := make([]byte, 48)
		return &b
	},
}

// getBuffer returns an empty buffer from the pool. Release it with PutBuffer.
func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer zeroes the buffer's whole backing array, including bytes already
// read, and returns it to the pool. It only scrubs this buffer: encoders that
// wrote into it may have kept their own copies.
func PutBuffer(buf *bytes.Buffer) {
	buf.Reset()
	clear(buf.Bytes()[:buf.Cap()])
	bufferPool.Put(buf)
}
