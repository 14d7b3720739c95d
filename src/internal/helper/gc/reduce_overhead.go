// Copyright (c) 2024 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package gc

import (
	"io"

	"github.com/valyala/bytebufferpool"
)

// Buffer defines the interface for a reusable byte buffer.
// It abstracts the [bytebufferpool.ByteBuffer] type to avoid direct dependencies.
type Buffer interface {
	Write(p []byte) (int, error)
	WriteString(s string) (int, error)
	WriteByte(c byte) error
	Bytes() []byte
	Len() int
	Set(p []byte)
	SetString(s string)
	String() string
	Reset()
	ReadFrom(r io.Reader) (int64, error)
}

// Pool defines the interface for buffer pooling.
// It abstracts the [bytebufferpool.Pool] type to avoid direct dependencies.
//
// Pool implementations must be safe for concurrent use by multiple goroutines.
type Pool interface {
	Get() Buffer
	Put(b Buffer)
}

// pool wraps [bytebufferpool.Pool] to implement Pool interface.
type pool struct{ p *bytebufferpool.Pool }

// Get returns a buffer from the pool.
func (p *pool) Get() Buffer { return p.p.Get() }

// Put returns a buffer to the pool.
func (p *pool) Put(b Buffer) {
	if buf, ok := b.(*bytebufferpool.ByteBuffer); ok {
		p.p.Put(buf)
	}
}

// Default is the default buffer pool used for efficient memory reuse in I/O operations.
//
// Example usage for assembling a wire frame before a single pipe write:
//
//	// Get a buffer from the pool
//	buf := gc.Default.Get()
//
//	defer func() {
//		buf.Reset()         // Reset the buffer to prevent data leaks
//		gc.Default.Put(buf) // Return the buffer to the pool for reuse
//	}()
//
//	buf.WriteString("Content-Length: ")
//	buf.WriteString(strconv.Itoa(len(body)))
//	buf.WriteString("\r\n\r\n")
//	buf.Write(body)
//
//	if _, err := w.Write(buf.Bytes()); err != nil {
//		return fmt.Errorf("error writing frame: %w", err)
//	}
//
// Example usage for accumulating a partially delivered stream:
//
//	buf := gc.Default.Get()
//
//	// Use defer to guarantee buffer cleanup (reset and return to the pool)
//	// even if an error occurs while draining the stream.
//	defer func() {
//		buf.Reset()         // Reset the buffer to prevent data leaks.
//		gc.Default.Put(buf) // Return the buffer to the pool for reuse.
//	}()
//
//	if _, err := buf.ReadFrom(r); err != nil {
//		return fmt.Errorf("error reading stream: %w", err)
//	}
//
//	processMessages(buf.Bytes())
//
// Note: These examples demonstrate the framing paths of the runtime, where buffers
// live across chunk boundaries. Efficient memory usage is achieved by leveraging
// a buffer pool, which is especially beneficial when many tool-server channels
// are decoding concurrently.
var Default Pool = &pool{p: &bytebufferpool.Pool{}}
