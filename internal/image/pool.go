package image

import "sync"

// Pool is a thread-safe pool for reusing ImageBuf instances.
//
// Pool groups buffers by dimensions, format and stride, so a full-screen
// plane released after one session is handed to the next one without a
// fresh multi-megabyte allocation.
//
// Thread safety: All methods are safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	buckets map[poolKey][]*ImageBuf
	maxSize int // max buffers per bucket
}

// poolKey identifies a bucket of identical image specifications.
type poolKey struct {
	width  int
	height int
	stride int
	format Format
}

// NewPool creates a new image buffer pool with the given maximum buffers per bucket.
// A maxPerBucket of 0 means unlimited (use with caution).
func NewPool(maxPerBucket int) *Pool {
	return &Pool{
		buckets: make(map[poolKey][]*ImageBuf),
		maxSize: maxPerBucket,
	}
}

// Get retrieves a zeroed buffer with the given dimensions, format and
// stride, reusing a pooled one when available. It returns an error when a
// new buffer cannot be allocated.
func (p *Pool) Get(width, height int, format Format, stride int) (*ImageBuf, error) {
	key := poolKey{width: width, height: height, stride: stride, format: format}

	p.mu.Lock()
	bucket := p.buckets[key]
	if len(bucket) > 0 {
		buf := bucket[len(bucket)-1]
		p.buckets[key] = bucket[:len(bucket)-1]
		p.mu.Unlock()
		return buf, nil
	}
	p.mu.Unlock()

	return NewImageBufWithStride(width, height, format, stride)
}

// Put returns an image buffer to the pool for reuse.
// The buffer is cleared before being stored.
// If buf is nil or the pool bucket is at max capacity, the buffer is discarded.
func (p *Pool) Put(buf *ImageBuf) {
	if buf == nil {
		return
	}

	buf.Clear()

	key := poolKey{
		width:  buf.width,
		height: buf.height,
		stride: buf.stride,
		format: buf.format,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.buckets[key]
	if p.maxSize > 0 && len(bucket) >= p.maxSize {
		return
	}
	p.buckets[key] = append(bucket, buf)
}

// Len returns the number of buffers currently held by the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, bucket := range p.buckets {
		n += len(bucket)
	}
	return n
}

// defaultPool is the package-level pool for convenient usage.
var defaultPool = NewPool(2)

// DefaultPool returns the package-level pool.
func DefaultPool() *Pool {
	return defaultPool
}
