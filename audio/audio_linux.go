//go:build linux

package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
)

// pulseAudio records through a PulseAudio (or pipewire-pulse) server.
type pulseAudio struct {
	client *pulse.Client
}

func NewContext() (Context, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("connect to pulse server: %w", err)
	}
	return &pulseAudio{client: c}, nil
}

func (a *pulseAudio) Devices() ([]DeviceInfo, error) {
	sources, err := a.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("list pulse sources: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(sources))
	for _, s := range sources {
		devices = append(devices, DeviceInfo{ID: s.ID(), Name: s.Name()})
	}
	return Microphones(devices), nil
}

func (a *pulseAudio) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	opts := []pulse.RecordOption{
		pulse.RecordMono,
		pulse.RecordSampleRate(int(config.SampleRate)),
		pulse.RecordLatency(0.05),
	}
	if device != nil {
		source, err := a.client.SourceByID(device.ID)
		if err != nil {
			return nil, fmt.Errorf("pulse source %q: %w", device.Name, err)
		}
		if source == nil {
			return nil, fmt.Errorf("pulse source %q is gone", device.Name)
		}
		opts = append(opts, pulse.RecordSource(source))
	}
	return &pulseRecording{client: a.client, opts: opts, gain: config.Gain}, nil
}

func (a *pulseAudio) Close() {
	a.client.Close()
}

// pulseRecording opens a fresh record stream on every Start.
type pulseRecording struct {
	client   *pulse.Client
	opts     []pulse.RecordOption
	gain     int32
	callback atomic.Pointer[DataCallback]

	mu     sync.Mutex
	stream *pulse.RecordStream
}

func (r *pulseRecording) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream != nil {
		return nil
	}
	stream, err := r.client.NewRecord(pulse.Int16Writer(r.write), r.opts...)
	if err != nil {
		return fmt.Errorf("open pulse record stream: %w", err)
	}
	stream.Start()
	r.stream = stream
	return nil
}

func (r *pulseRecording) write(buf []int16) (int, error) {
	if cb := r.callback.Load(); cb != nil && len(buf) > 0 {
		(*cb)(pcmBytes(buf, r.gain), uint32(len(buf)))
	}
	return len(buf), nil
}

func (r *pulseRecording) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream == nil {
		return
	}
	r.stream.Stop()
	r.stream.Close()
	r.stream = nil
}

func (r *pulseRecording) Close() {
	r.Stop()
}

func (r *pulseRecording) SetCallback(cb DataCallback) {
	r.callback.Store(&cb)
}

func (r *pulseRecording) ClearCallback() {
	r.callback.Store(nil)
}
