package doctor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"listening/audio"
	"listening/credential"
	"listening/device"
	"listening/encoder"
)

// Backend is the subset of the API client the doctor probes.
type Backend interface {
	BaseURL() string
	DiagnosisHealth(ctx context.Context) error
	ConversionHealth(ctx context.Context) error
}

type Options struct {
	Backend     Backend
	Credentials credential.Store
	// NewAudio opens the capture context; audio.NewContext when nil.
	NewAudio       func() (audio.Context, error)
	RecordFor      time.Duration
	SampleRate     uint32
	SkipClipboard  bool
	NonInteractive bool

	In  io.Reader
	Out io.Writer
}

type runner struct {
	ctx    context.Context
	opts   Options
	in     *bufio.Reader
	out    io.Writer
	checks int
	step   int
}

// Run executes diagnostic checks and returns an exit code (0=all pass, 1=any fail).
// Canceling ctx abandons the remaining checks.
func Run(ctx context.Context, opts Options) int {
	if opts.NewAudio == nil {
		opts.NewAudio = audio.NewContext
	}
	if opts.RecordFor <= 0 {
		opts.RecordFor = 3 * time.Second
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = encoder.DefaultSampleRate
	}
	if !opts.NonInteractive {
		defer keepTerminal()()
	}

	r := &runner{ctx: ctx, opts: opts, in: bufio.NewReader(opts.In), out: opts.Out, checks: 4}
	if opts.SkipClipboard {
		r.checks = 3
	}

	fmt.Fprintln(r.out, "listening doctor - system diagnostics")
	fmt.Fprintln(r.out, "=====================================")

	checks := []func() bool{r.checkBackend, r.checkCredentials, r.checkMicrophone}
	if !opts.SkipClipboard {
		checks = append(checks, r.checkClipboard)
	}
	allPass := true
	for _, check := range checks {
		if ctx.Err() != nil {
			fmt.Fprintln(r.out, "\nInterrupted")
			return 1
		}
		if !check() {
			allPass = false
		}
	}

	fmt.Fprintln(r.out)
	if allPass {
		fmt.Fprintln(r.out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(r.out, "Some checks failed. See details above.")
	return 1
}

func (r *runner) header(title string) {
	r.step++
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "[%d/%d] %s\n", r.step, r.checks, title)
}

func (r *runner) checkBackend() bool {
	r.header("Backend reachability")
	if r.opts.Backend == nil {
		fmt.Fprintln(r.out, "  FAIL: no backend configured")
		return false
	}
	fmt.Fprintf(r.out, "  Base URL: %s\n", r.opts.Backend.BaseURL())

	ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
	defer cancel()

	ok := true
	for _, probe := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{"diagnoses", r.opts.Backend.DiagnosisHealth},
		{"conversions", r.opts.Backend.ConversionHealth},
	} {
		start := time.Now()
		if err := probe.fn(ctx); err != nil {
			fmt.Fprintf(r.out, "  FAIL: %s health check: %v\n", probe.name, err)
			ok = false
			continue
		}
		fmt.Fprintf(r.out, "  PASS: %s health check (%dms)\n", probe.name, time.Since(start).Milliseconds())
	}
	return ok
}

func (r *runner) checkCredentials() bool {
	r.header("Credential store")
	if r.opts.Credentials == nil {
		fmt.Fprintln(r.out, "  FAIL: no credential store configured")
		return false
	}
	cred, err := r.opts.Credentials.Load()
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: cannot read stored credentials: %v\n", err)
		return false
	}
	if cred.Empty() {
		fmt.Fprintln(r.out, "  PASS: store readable (not logged in)")
		return true
	}
	refresh := "missing"
	if cred.RefreshToken != "" {
		refresh = "present"
	}
	fmt.Fprintf(r.out, "  PASS: logged in (refresh token %s)\n", refresh)
	return true
}

func (r *runner) checkMicrophone() bool {
	r.header("Microphone")

	actx, err := r.opts.NewAudio()
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.out, "  FAIL: no capture devices found")
		return false
	}

	device, err := r.pickDevice(devices)
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: %v\n", err)
		return false
	}
	if audio.IsBluetooth(device.Name) {
		fmt.Fprintln(r.out, "  Warning: bluetooth input lowers recording quality")
	}

	if !r.opts.NonInteractive {
		fmt.Fprintf(r.out, "Press Enter and speak for %s...", r.opts.RecordFor)
		if err := r.waitEnter(); err != nil {
			fmt.Fprintln(r.out)
			return false
		}
	}

	stop := make(chan struct{})
	go func() {
		t := time.NewTimer(r.opts.RecordFor)
		defer t.Stop()
		select {
		case <-t.C:
		case <-r.ctx.Done():
		}
		close(stop)
	}()

	pcm, err := r.recordAudio(actx, device, stop)
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: recording error: %v\n", err)
		return false
	}
	if len(pcm) == 0 {
		fmt.Fprintln(r.out, "  FAIL: no audio captured")
		return false
	}

	peak := peakLevel(pcm)
	fmt.Fprintf(r.out, "  Recorded %.1f KB, peak level %.0f%%\n", float64(len(pcm))/1024, peak*100)
	if peak < 0.01 {
		fmt.Fprintln(r.out, "  Warning: input is silent, check the selected device")
	}
	fmt.Fprintln(r.out, "  PASS: microphone captured audio")
	return true
}

func (r *runner) waitEnter() error {
	line := make(chan struct{})
	go func() {
		r.in.ReadString('\n')
		close(line)
	}()
	select {
	case <-line:
		return nil
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}

func (r *runner) pickDevice(devices []audio.DeviceInfo) (*audio.DeviceInfo, error) {
	if len(devices) == 1 || r.opts.NonInteractive {
		fmt.Fprintf(r.out, "Using device: %s\n", devices[0].Name)
		return &devices[0], nil
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Select input device:")
	for i, d := range devices {
		fmt.Fprintf(r.out, "  %d. %s\n", i+1, d.Name)
	}
	fmt.Fprintf(r.out, "Choice [1-%d]: ", len(devices))

	choice, _ := r.in.ReadString('\n')
	choice = strings.TrimSpace(choice)
	idx := 0
	if choice != "" {
		fmt.Sscanf(choice, "%d", &idx)
		idx--
	}
	if idx < 0 || idx >= len(devices) {
		return nil, errors.New("invalid choice")
	}
	fmt.Fprintf(r.out, "Selected: %s\n", devices[idx].Name)
	return &devices[idx], nil
}

func (r *runner) recordAudio(actx audio.Context, device *audio.DeviceInfo, stop <-chan struct{}) ([]byte, error) {
	var pcmBuf []byte
	var bufMu sync.Mutex
	var stopped bool
	done := make(chan struct{})

	captureDevice, err := actx.NewCapture(device, audio.CaptureConfig{
		SampleRate: r.opts.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, err
	}

	captureDevice.SetCallback(func(data []byte, _ uint32) {
		bufMu.Lock()
		defer bufMu.Unlock()
		if stopped {
			return
		}
		pcmBuf = append(pcmBuf, data...)
	})

	if err := captureDevice.Start(); err != nil {
		captureDevice.Close()
		return nil, err
	}

	fmt.Fprint(r.out, "  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	var progress sync.WaitGroup
	progress.Add(1)
	go func() {
		defer progress.Done()
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Fprint(r.out, ".")
			}
		}
	}()

	<-stop
	close(done)
	progress.Wait()

	captureDevice.Stop()
	fmt.Fprintln(r.out, " done")
	captureDevice.Close()

	bufMu.Lock()
	stopped = true
	raw := pcmBuf
	bufMu.Unlock()

	return raw, nil
}

// peakLevel is the loudest 16-bit sample as a fraction of full scale.
func peakLevel(pcm []byte) float64 {
	var peak int32
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int32(int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8))
		if s < 0 {
			s = -s
		}
		peak = max(peak, s)
	}
	return float64(peak) / 32768
}

func (r *runner) checkClipboard() bool {
	r.header("Clipboard")

	const probe = "listening-doctor-test"
	if err := device.CopyToClipboard(probe); err != nil {
		fmt.Fprintf(r.out, "  FAIL: clipboard copy failed: %v\n", err)
		return false
	}
	got, err := device.ReadClipboard()
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: could not read clipboard: %v\n", err)
		return false
	}
	if got != probe {
		fmt.Fprintf(r.out, "  FAIL: clipboard round trip (got %q, want %q)\n", got, probe)
		return false
	}
	fmt.Fprintln(r.out, "  PASS: clipboard copy verified")
	return true
}
