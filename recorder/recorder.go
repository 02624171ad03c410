package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"listening/log"
)

var (
	ErrPermissionDenied    = errors.New("microphone permission denied")
	ErrNoRecordingProduced = errors.New("no recording produced")
	ErrFileNotFound        = errors.New("recording file not found")
	ErrAlreadyRecording    = errors.New("a recording is already in progress")
	ErrNotRecording        = errors.New("not recording")
	// ErrAlreadyUnloaded is returned by a Recording that was already finalized.
	ErrAlreadyUnloaded = errors.New("recording already unloaded")
)

type State int

const (
	Idle State = iota
	Recording
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Microphone is the capture capability.
type Microphone interface {
	// RequestPermission reports whether capture is allowed.
	RequestPermission(ctx context.Context) (bool, error)
	NewRecording() (RecordingHandle, error)
}

// RecordingHandle is one capture in progress.
type RecordingHandle interface {
	Start() error
	// StopAndUnload finalizes the file. A second call returns ErrAlreadyUnloaded.
	StopAndUnload() error
	// URI is the finalized file location, or "" if nothing was written.
	URI() string
}

// Submitter uploads a persisted recording and returns the parsed payload.
type Submitter func(ctx context.Context, path string) (any, error)

// Outcome is delivered exactly once per recording session.
type Outcome struct {
	Path   string
	Result any
	Err    error
}

const (
	DefaultPollAttempts = 3
	DefaultPollInterval = 120 * time.Millisecond
)

type session struct {
	rec       RecordingHandle
	startedAt time.Time
	notified  sync.Once
}

// Pipeline drives one recording at a time from start through upload.
type Pipeline struct {
	mic    Microphone
	submit Submitter
	dir    string

	fs           afero.Fs
	pollAttempts int
	pollInterval time.Duration
	sleep        func(context.Context, time.Duration) error
	now          func() time.Time
	onOutcome    func(Outcome)

	mu      sync.Mutex
	state   State
	current *session
}

type Option func(*Pipeline)

// WithFs sets the file system recordings are read from and persisted to.
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) { p.fs = fs }
}

func WithPolling(attempts int, interval time.Duration) Option {
	return func(p *Pipeline) {
		if attempts > 0 {
			p.pollAttempts = attempts
		}
		if interval >= 0 {
			p.pollInterval = interval
		}
	}
}

func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(p *Pipeline) { p.sleep = sleep }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// OnOutcome registers the single receiver of session outcomes.
func OnOutcome(fn func(Outcome)) Option {
	return func(p *Pipeline) { p.onOutcome = fn }
}

// New creates a pipeline that persists finished recordings under dir and hands
// them to submit.
func New(mic Microphone, dir string, submit Submitter, opts ...Option) *Pipeline {
	p := &Pipeline{
		mic:          mic,
		submit:       submit,
		dir:          dir,
		fs:           afero.NewOsFs(),
		pollAttempts: DefaultPollAttempts,
		pollInterval: DefaultPollInterval,
		sleep:        sleepCtx,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// transition must be called with p.mu held.
func (p *Pipeline) transition(to State) {
	log.RecordingState(p.state.String(), to.String())
	p.state = to
}

func (p *Pipeline) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transition(Idle)
	p.current = nil
}

// Start begins a new recording. It fails unless the pipeline is idle.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != Idle || p.current != nil {
		p.mu.Unlock()
		return ErrAlreadyRecording
	}
	// Hold the slot while the permission prompt is open.
	sess := &session{}
	p.current = sess
	p.mu.Unlock()

	rec, err := p.prepare(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.current = nil
		return err
	}
	sess.rec = rec
	sess.startedAt = p.now()
	p.transition(Recording)
	return nil
}

func (p *Pipeline) prepare(ctx context.Context) (RecordingHandle, error) {
	granted, err := p.mic.RequestPermission(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if !granted {
		return nil, ErrPermissionDenied
	}
	rec, err := p.mic.NewRecording()
	if err != nil {
		return nil, fmt.Errorf("prepare recording: %w", err)
	}
	if err := rec.Start(); err != nil {
		rec.StopAndUnload()
		return nil, fmt.Errorf("start recording: %w", err)
	}
	return rec, nil
}

// Stop finalizes the current recording, persists it and submits it. Calling Stop
// while a stop is already underway is a no-op. The session outcome goes to the
// OnOutcome receiver and its error is also returned to the stopping caller.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case Stopping, Stopped:
		p.mu.Unlock()
		return nil
	case Idle:
		p.mu.Unlock()
		return ErrNotRecording
	}
	sess := p.current
	p.transition(Stopping)
	p.mu.Unlock()

	out := p.finish(ctx, sess)
	p.deliver(sess, out)
	p.reset()
	return out.Err
}

func (p *Pipeline) finish(ctx context.Context, sess *session) Outcome {
	if err := sess.rec.StopAndUnload(); err != nil && !errors.Is(err, ErrAlreadyUnloaded) {
		return Outcome{Err: fmt.Errorf("finalize recording: %w", err)}
	}
	uri := sess.rec.URI()
	if uri == "" {
		return Outcome{Err: ErrNoRecordingProduced}
	}
	if err := p.awaitFile(ctx, uri); err != nil {
		return Outcome{Err: err}
	}

	path, err := p.persist(uri)
	if err != nil {
		return Outcome{Err: err}
	}

	p.mu.Lock()
	p.transition(Stopped)
	p.mu.Unlock()

	if p.submit == nil {
		return Outcome{Path: path}
	}
	result, err := p.submit(ctx, path)
	return Outcome{Path: path, Result: result, Err: err}
}

// awaitFile polls for a freshly finalized file that the storage layer may not
// report yet.
func (p *Pipeline) awaitFile(ctx context.Context, path string) error {
	for attempt := 1; ; attempt++ {
		ok, err := afero.Exists(p.fs, path)
		if err == nil && ok {
			return nil
		}
		if attempt >= p.pollAttempts {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if err := p.sleep(ctx, p.pollInterval); err != nil {
			return err
		}
	}
}

// persist copies the finalized file into the recordings directory.
func (p *Pipeline) persist(src string) (string, error) {
	if err := p.fs.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create recordings dir: %w", err)
	}
	ext := strings.TrimPrefix(filepath.Ext(src), ".")
	if ext == "" {
		ext = DefaultExt()
	}
	dst := filepath.Join(p.dir, fmt.Sprintf("recording-%d.%s", p.now().UnixMilli(), ext))

	in, err := p.fs.Open(src)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer in.Close()
	out, err := p.fs.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("copy recording: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	in.Close()
	if err := p.fs.Remove(src); err != nil {
		log.Warnf("remove capture %s: %v", src, err)
	}
	return dst, nil
}

// DefaultExt is the container platform recorders write when a capture path
// carries no extension.
func DefaultExt() string {
	if runtime.GOOS == "darwin" || runtime.GOOS == "ios" {
		return "caf"
	}
	return "m4a"
}

func (p *Pipeline) deliver(sess *session, out Outcome) {
	sess.notified.Do(func() {
		if out.Err != nil {
			log.Errorf("recording failed: %v", out.Err)
		} else {
			log.Infof("recording submitted: %s (%s)", out.Path, p.now().Sub(sess.startedAt).Round(time.Millisecond))
		}
		if p.onOutcome != nil {
			p.onOutcome(out)
		}
	})
}

// Close stops an in-flight recording without submitting it. The session still
// receives its one outcome.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.state != Recording {
		p.mu.Unlock()
		return
	}
	sess := p.current
	p.transition(Stopping)
	p.mu.Unlock()

	err := sess.rec.StopAndUnload()
	if errors.Is(err, ErrAlreadyUnloaded) {
		err = nil
	}
	p.deliver(sess, Outcome{Path: sess.rec.URI(), Err: errors.Join(context.Canceled, err)})
	p.reset()
}
