package audio

import (
	"os"
	"sync"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext plays back fixed PCM instead of a microphone.
type FakeContext struct {
	pcm      []byte
	realtime bool
	// NoDevices simulates a machine without capture hardware.
	NoDevices bool
}

func NewFakeContext(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

// NewFakeContextFromWAV strips the header of a 16-bit mono WAV file.
func NewFakeContextFromWAV(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return NewFakeContext(data, realtime), nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	if f.NoDevices {
		return nil, nil
	}
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime, sampleRate: config.SampleRate}, nil
}

type FakeCapture struct {
	pcm        []byte
	realtime   bool
	sampleRate uint32

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) feedChunk(pos int) int {
	end := min(pos+fakeFrameSize*fakeBytesPerFrame, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	}
	return end
}

// Start delivers all PCM before returning unless the context is realtime, in
// which case chunks are paced at the configured sample rate.
func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	if !f.realtime {
		for pos := 0; pos < len(f.pcm); {
			pos = f.feedChunk(pos)
		}
		close(f.feedDone)
		return nil
	}

	rate := f.sampleRate
	if rate == 0 {
		rate = 16000
	}
	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(rate)
	go func() {
		defer close(f.feedDone)
		for pos := 0; pos < len(f.pcm); {
			pos = f.feedChunk(pos)
			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
		<-f.stopCh
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {}
