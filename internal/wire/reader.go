package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/keepmind9/tgembed/internal/logger"
	"github.com/keepmind9/tgembed/pkg/constants"
	"github.com/sirupsen/logrus"
)

// Source is a non-blocking byte stream. Read returns (0, nil) when no data
// is available yet.
type Source interface {
	Read(p []byte) (int, error)
}

// Clock is a wrapping millisecond counter.
type Clock interface {
	Millis() uint32
}

// ClockFunc adapts a function to Clock
type ClockFunc func() uint32

// Millis implements Clock
func (f ClockFunc) Millis() uint32 {
	return f()
}

var processStart = time.Now()

// SystemClock counts milliseconds since process start, truncated to 32 bits.
var SystemClock Clock = ClockFunc(func() uint32 {
	return uint32(time.Since(processStart).Milliseconds())
})

// Reader drives a Source until a response is complete.
type Reader struct {
	Source       Source
	Clock        Clock
	PollInterval time.Duration
	Sleep        func(time.Duration)
}

// NewReader returns a Reader using the system clock and time.Sleep
func NewReader(src Source) *Reader {
	return &Reader{
		Source:       src,
		Clock:        SystemClock,
		PollInterval: constants.DefaultReadPollInterval,
		Sleep:        time.Sleep,
	}
}

// ReadResponse appends the response into the free part of dst.
//
// Until the first byte arrives the total timeout applies and expiry returns
// ErrResponseTimeout. After that, a silence of at least between with no new
// bytes ends the response successfully. A byte that would not fit dst
// returns ErrResponseBufferFull; dst is never written past its capacity.
func (r *Reader) ReadResponse(ctx context.Context, dst *Buffer, total, between time.Duration) (int, error) {
	clock := r.Clock
	if clock == nil {
		clock = SystemClock
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	totalMs := durationMillis(total)
	betweenMs := durationMillis(between)

	var (
		probe    [1]byte
		received int
		start    = clock.Millis()
		last     uint32
	)

	for {
		if err := ctx.Err(); err != nil {
			return received, err
		}

		now := clock.Millis()
		// The counter wrapped. Restart the window instead of computing a
		// huge unsigned difference.
		if now < start {
			start = now
		}
		if received > 0 && now < last {
			last = now
		}

		if received == 0 && now-start >= totalMs {
			logger.Component("wire").WithFields(logrus.Fields{
				"component":  "wire",
				"timeout_ms": totalMs,
			}).Warn("response-wait-timeout")
			return 0, ErrResponseTimeout
		}

		tail := dst.tail()
		target := tail
		if len(tail) == 0 {
			target = probe[:]
		}

		n, err := r.Source.Read(target)
		if n > 0 {
			if len(tail) == 0 {
				return received, fmt.Errorf("%w: capacity %d bytes", ErrResponseBufferFull, dst.Cap())
			}
			dst.advance(n)
			received += n
			last = now
		}
		if err != nil {
			if errors.Is(err, io.EOF) && received > 0 {
				return received, nil
			}
			return received, fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		if n > 0 {
			continue
		}

		if received > 0 && now-last >= betweenMs {
			logger.Component("wire").WithFields(logrus.Fields{
				"component": "wire",
				"bytes":     received,
			}).Debug("response-complete")
			return received, nil
		}

		sleep(r.PollInterval)
	}
}

func durationMillis(d time.Duration) uint32 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(ms)
}
