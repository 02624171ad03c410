package encoder

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

const wavHeaderSize = 44

type WavEncoder struct {
	w           io.WriteSeeker
	sampleRate  uint32
	totalFrames uint64
	mu          sync.Mutex
	buf         []byte
}

func NewWav(w io.WriteSeeker, sampleRate uint32) (*WavEncoder, error) {
	e := &WavEncoder{w: w, sampleRate: sampleRate}
	if _, err := w.Write(e.header(0)); err != nil {
		return nil, fmt.Errorf("writing wav header: %w", err)
	}
	return e, nil
}

func (e *WavEncoder) header(dataSize uint32) []byte {
	h := make([]byte, wavHeaderSize)
	byteRate := e.sampleRate * Channels * BitsPerSample / 8
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], Channels)
	binary.LittleEndian.PutUint32(h[24:28], e.sampleRate)
	binary.LittleEndian.PutUint32(h[28:32], byteRate)
	binary.LittleEndian.PutUint16(h[32:34], Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(h[34:36], BitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	return h
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cap(e.buf) < len(block)*2 {
		e.buf = make([]byte, len(block)*2)
	}
	buf := e.buf[:len(block)*2]
	for i, s := range block {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if _, err := e.w.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	e.totalFrames += uint64(len(block))
	return nil
}

// Close rewrites the header with the final sizes.
func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	dataSize := uint32(e.totalFrames * Channels * BitsPerSample / 8)
	if _, err := e.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking wav header: %w", err)
	}
	if _, err := e.w.Write(e.header(dataSize)); err != nil {
		return fmt.Errorf("writing wav header: %w", err)
	}
	_, err := e.w.Seek(0, io.SeekEnd)
	return err
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}
