package encoder

import (
	"fmt"
	"io"
)

const (
	DefaultSampleRate = 44100
	Channels          = 1
	BitsPerSample     = 16
	BlockSize         = 4096
)

const (
	FormatWAV  = "wav"
	FormatFLAC = "flac"
)

// Encoder streams 16-bit mono PCM into a recording file.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	TotalFrames() uint64
}

// New returns an encoder for format writing to w. Close finalizes the header in place,
// so w has to be seekable.
func New(format string, w io.WriteSeeker, sampleRate uint32) (Encoder, error) {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	switch format {
	case FormatWAV:
		return NewWav(w, sampleRate)
	case FormatFLAC:
		return NewFlac(w, sampleRate)
	default:
		return nil, fmt.Errorf("unsupported recording format %q", format)
	}
}
