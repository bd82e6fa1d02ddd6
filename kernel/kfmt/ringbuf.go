package kfmt

import "io"

// ringBufferSize defines the size of the ring buffer that buffers early
// Printf output. Its size should be selected so that it can buffer the
// subsystem bring-up messages emitted before an output sink is registered.
const ringBufferSize = 2048

// ringBuffer models a ring buffer of size ringBufferSize. Writes that exceed
// the buffer capacity overwrite its oldest contents so the buffer always
// retains the most recent output.
type ringBuffer struct {
	data          [ringBufferSize]byte
	rIndex, wIndex int
	unread         int
}

// Write implements io.Writer. Write calls never fail.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.data[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) % ringBufferSize

		if rb.unread < ringBufferSize {
			rb.unread++
			continue
		}

		// Buffer is full; drop the oldest unread byte
		rb.rIndex = rb.wIndex
	}

	return len(p), nil
}

// Read implements io.Reader, draining any unread bytes into p.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	var n int
	for ; n < len(p) && rb.unread > 0; n++ {
		p[n] = rb.data[rb.rIndex]
		rb.rIndex = (rb.rIndex + 1) % ringBufferSize
		rb.unread--
	}

	if n == 0 {
		return 0, io.EOF
	}

	return n, nil
}
