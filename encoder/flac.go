package encoder

import (
	"fmt"
	"io"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// FlacEncoder writes a mono 16-bit FLAC recording file block by block.
type FlacEncoder struct {
	enc         *flac.Encoder
	sampleRate  uint32
	totalFrames uint64
	samples     []int32
	mu          sync.Mutex
}

func NewFlac(w io.Writer, sampleRate uint32) (*FlacEncoder, error) {
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    sampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(w, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	return &FlacEncoder{enc: enc, sampleRate: sampleRate}, nil
}

// EncodeBlock writes one frame. Blocks longer than BlockSize are split.
func (e *FlacEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for len(block) > 0 {
		n := min(len(block), BlockSize)
		if err := e.enc.WriteFrame(e.monoFrame(block[:n])); err != nil {
			return fmt.Errorf("writing flac frame: %w", err)
		}
		e.totalFrames += uint64(n)
		block = block[n:]
	}
	return nil
}

func (e *FlacEncoder) monoFrame(block []int16) *frame.Frame {
	if cap(e.samples) < len(block) {
		e.samples = make([]int32, BlockSize)
	}
	samples := e.samples[:len(block)]
	for i, s := range block {
		samples[i] = int32(s)
	}
	return &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    e.sampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  len(block),
		}},
	}
}

// Close flushes the stream; on a seekable writer the stream info is updated with the sample count.
func (e *FlacEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Close()
}

func (e *FlacEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}
