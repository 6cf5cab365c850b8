package linecount

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schaermu/linewatch/internal/state"
)

// DefaultBufferSize is the chunk size used when none is configured
const DefaultBufferSize = 1 << 20

const (
	lf = '\n'
	cr = '\r'
)

// Count returns the number of lines in r.
//
// The first '\n' or '\r' seen fixes the terminator for the rest of the
// stream; only that byte is counted afterwards, so "\r\n" pairs count once.
// A non-empty stream whose last byte is not a terminator gets one more line
// for the unterminated tail. ctx is checked before every chunk read.
func Count(ctx context.Context, r io.Reader, buf []byte) (int, error) {
	if len(buf) == 0 {
		buf = make([]byte, DefaultBufferSize)
	}

	var (
		lines    int
		eol      byte
		last     byte
		nonEmpty bool
	)

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			nonEmpty = true
			chunk := buf[:n]
			for _, b := range chunk {
				if eol != 0 {
					if b == eol {
						lines++
					}
					continue
				}
				if b == lf || b == cr {
					eol = b
					lines++
				}
			}
			last = chunk[n-1]
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
	}

	if nonEmpty && last != lf && last != cr {
		lines++
	}

	return lines, nil
}

// Counter counts lines of files on disk, reusing chunk buffers across calls
type Counter struct {
	bufferSize int
	pool       sync.Pool
	observe    func(time.Duration)
}

// NewCounter creates a counter reading files in chunks of bufferSize bytes.
// A non-positive size selects DefaultBufferSize.
func NewCounter(bufferSize int) *Counter {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	c := &Counter{bufferSize: bufferSize}
	c.pool.New = func() any {
		b := make([]byte, c.bufferSize)
		return &b
	}
	return c
}

// OnCount registers a callback receiving the duration of each successful count
func (c *Counter) OnCount(fn func(time.Duration)) {
	c.observe = fn
}

// CountFile counts the lines of the file named by id
func (c *Counter) CountFile(ctx context.Context, id state.Identifier) (state.FileState, error) {
	start := time.Now()

	f, err := os.Open(id.Path)
	if err != nil {
		return state.FileState{}, fmt.Errorf("count %s: %w", id.Path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	bp := c.pool.Get().(*[]byte)
	defer c.pool.Put(bp)

	lines, err := Count(ctx, f, *bp)
	if err != nil {
		return state.FileState{}, fmt.Errorf("count %s: %w", id.Path, err)
	}

	if c.observe != nil {
		c.observe(time.Since(start))
	}

	return state.FileState{ID: id, Lines: lines}, nil
}
