package recorder

import (
	"context"
	"sync"

	"github.com/spf13/afero"
)

// FakeMicrophone hands out FakeRecordings that write Data to Path on stop.
type FakeMicrophone struct {
	Fs   afero.Fs
	Path string
	Data []byte

	Denied bool
	// SkipWrite leaves the file missing after stop.
	SkipWrite bool
	// NoURI makes recordings report no output at all.
	NoURI bool
	// Unloaded makes every StopAndUnload report ErrAlreadyUnloaded.
	Unloaded bool

	mu         sync.Mutex
	recordings []*FakeRecording
}

func (m *FakeMicrophone) RequestPermission(context.Context) (bool, error) {
	return !m.Denied, nil
}

func (m *FakeMicrophone) NewRecording() (RecordingHandle, error) {
	r := &FakeRecording{mic: m}
	m.mu.Lock()
	m.recordings = append(m.recordings, r)
	m.mu.Unlock()
	return r, nil
}

func (m *FakeMicrophone) Recordings() []*FakeRecording {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*FakeRecording(nil), m.recordings...)
}

type FakeRecording struct {
	mic *FakeMicrophone

	mu       sync.Mutex
	started  bool
	unloaded bool
	stops    int
}

func (r *FakeRecording) Start() error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

func (r *FakeRecording) StopAndUnload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	if r.unloaded {
		return ErrAlreadyUnloaded
	}
	r.unloaded = true
	if !r.mic.SkipWrite && !r.mic.NoURI {
		if err := afero.WriteFile(r.mic.Fs, r.mic.Path, r.mic.Data, 0o644); err != nil {
			return err
		}
	}
	if r.mic.Unloaded {
		return ErrAlreadyUnloaded
	}
	return nil
}

func (r *FakeRecording) URI() string {
	if r.mic.NoURI {
		return ""
	}
	return r.mic.Path
}

func (r *FakeRecording) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}
