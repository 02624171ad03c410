package assistant

import (
	"context"
	"math"
	"time"
)

const (
	DefaultCharsPerSecond = 30
	DefaultChunkInterval  = 33 * time.Millisecond
)

// ChunkSize is the number of runes emitted per tick for a target rate.
func ChunkSize(cps int) int {
	return max(1, int(math.Round(float64(cps)/2)))
}

// Stream emits text in small rune chunks, one per interval, for typing-style
// rendering. The channel closes after the last chunk or as soon as ctx is done.
func Stream(ctx context.Context, text string, cps int, interval time.Duration) <-chan string {
	out := make(chan string)
	runes := []rune(text)
	size := ChunkSize(cps)

	go func() {
		defer close(out)
		for i := 0; i < len(runes); i += size {
			if ctx.Err() != nil {
				return
			}
			chunk := string(runes[i:min(i+size, len(runes))])
			select {
			case <-ctx.Done():
				return
			case out <- chunk:
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}()
	return out
}
