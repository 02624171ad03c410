package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"listening/encoder"
	"listening/recorder"
)

// Microphone is the desktop capture capability. Each recording streams PCM from the
// selected device into an encoded scratch file.
type Microphone struct {
	ctx        Context
	device     *DeviceInfo
	scratchDir string
	format     string
	sampleRate uint32
	gain       int32
}

func NewMicrophone(ctx Context, device *DeviceInfo, scratchDir, format string, sampleRate uint32) *Microphone {
	return &Microphone{
		ctx:        ctx,
		device:     device,
		scratchDir: scratchDir,
		format:     format,
		sampleRate: sampleRate,
	}
}

// SetGain amplifies quiet inputs.
func (m *Microphone) SetGain(gain int32) { m.gain = gain }

// RequestPermission succeeds when at least one capture device is reachable. Desktop
// platforms have no prompt; an unreachable audio server reads as denied.
func (m *Microphone) RequestPermission(context.Context) (bool, error) {
	devices, err := m.ctx.Devices()
	if err != nil {
		return false, err
	}
	return len(devices) > 0, nil
}

func (m *Microphone) NewRecording() (recorder.RecordingHandle, error) {
	capture, err := m.ctx.NewCapture(m.device, CaptureConfig{
		SampleRate: m.sampleRate,
		Channels:   encoder.Channels,
		Gain:       m.gain,
	})
	if err != nil {
		return nil, fmt.Errorf("open capture device: %w", err)
	}
	return &FileRecording{
		capture:    capture,
		dir:        m.scratchDir,
		format:     m.format,
		sampleRate: m.sampleRate,
	}, nil
}

// FileRecording writes one capture to disk in encoder.BlockSize blocks.
type FileRecording struct {
	capture    CaptureDevice
	dir        string
	format     string
	sampleRate uint32

	mu       sync.Mutex
	file     *os.File
	enc      encoder.Encoder
	pending  []int16
	writeErr error
	path     string
	unloaded bool
}

func (r *FileRecording) Start() error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	f, err := os.CreateTemp(r.dir, "capture-*."+r.format)
	if err != nil {
		return fmt.Errorf("create capture file: %w", err)
	}
	enc, err := encoder.New(r.format, f, r.sampleRate)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}

	r.mu.Lock()
	r.file, r.enc = f, enc
	r.mu.Unlock()

	r.capture.SetCallback(r.onData)
	if err := r.capture.Start(); err != nil {
		r.capture.ClearCallback()
		return fmt.Errorf("start capture: %w", err)
	}
	return nil
}

func (r *FileRecording) onData(data []byte, _ uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil || r.writeErr != nil {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		r.pending = append(r.pending, int16(binary.LittleEndian.Uint16(data[i:])))
	}
	for len(r.pending) >= encoder.BlockSize {
		if err := r.enc.EncodeBlock(r.pending[:encoder.BlockSize]); err != nil {
			r.writeErr = err
			return
		}
		r.pending = r.pending[encoder.BlockSize:]
	}
}

func (r *FileRecording) StopAndUnload() error {
	r.mu.Lock()
	if r.unloaded {
		r.mu.Unlock()
		return recorder.ErrAlreadyUnloaded
	}
	r.unloaded = true
	r.mu.Unlock()

	// The capture callback takes r.mu, so the device is stopped unlocked.
	r.capture.Stop()
	r.capture.ClearCallback()
	r.capture.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	var flushErr error
	if len(r.pending) > 0 && r.writeErr == nil {
		flushErr = r.enc.EncodeBlock(r.pending)
		r.pending = nil
	}
	encErr := r.enc.Close()
	closeErr := r.file.Close()
	if err := errors.Join(r.writeErr, flushErr, encErr, closeErr); err != nil {
		return err
	}
	r.path = r.file.Name()
	return nil
}

// URI is set only after a clean finalize.
func (r *FileRecording) URI() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

func (r *FileRecording) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return 0
	}
	return r.enc.TotalFrames()
}
