package stream

import (
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strings"

	"go.uber.org/zap"
)

const readSize = 4 * 1024

// Decoder reads data frames from r and decodes each payload as JSON into T.
//
// Next returns io.EOF after the DoneSentinel frame or when r is exhausted.
// Once the sentinel is seen, r is not read again. Frames whose payload fails
// to decode are logged and skipped. There is no cancel method: close the
// underlying body to abandon the stream.
type Decoder[T any] struct {
	r       io.Reader
	buf     Buffer
	queue   []string
	scratch []byte
	done    bool
	readErr error
	log     *zap.Logger

	skipped int
}

// NewDecoder creates a decoder over r. A nil logger discards output.
func NewDecoder[T any](r io.Reader, log *zap.Logger) *Decoder[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder[T]{
		r:       r,
		scratch: make([]byte, readSize),
		log:     log,
	}
}

// Next returns the next decoded payload.
func (d *Decoder[T]) Next() (T, error) {
	var zero T
	for {
		for len(d.queue) > 0 {
			frame := d.queue[0]
			d.queue = d.queue[1:]

			payload, ok := Payload(frame)
			if !ok {
				continue
			}
			if payload == DoneSentinel {
				d.done = true
				d.queue = nil
				return zero, io.EOF
			}

			var v T
			if err := json.Unmarshal([]byte(payload), &v); err != nil {
				d.skipped++
				d.log.Warn("skipping malformed stream frame",
					zap.Error(err),
					zap.Int("payload_bytes", len(payload)))
				continue
			}
			return v, nil
		}

		if d.done {
			return zero, io.EOF
		}
		if d.readErr != nil {
			return zero, d.readErr
		}
		d.fill()
	}
}

// fill performs one read and queues any frames it completes.
func (d *Decoder[T]) fill() {
	n, err := d.r.Read(d.scratch)
	if n > 0 {
		d.queue = append(d.queue, d.buf.Feed(string(d.scratch[:n]))...)
	}
	if err == nil {
		return
	}
	if errors.Is(err, io.EOF) {
		// A server that closes without a trailing blank line still delivered
		// its last frame.
		if tail := d.buf.Flush(); strings.TrimSpace(tail) != "" {
			d.queue = append(d.queue, tail)
		}
		d.readErr = io.EOF
		return
	}
	d.readErr = err
}

// Skipped returns the number of frames dropped because they failed to decode.
func (d *Decoder[T]) Skipped() int {
	return d.skipped
}

// All yields every payload until the stream ends. A terminal non-EOF error
// is yielded once as the final element.
func (d *Decoder[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}
