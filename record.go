package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"listening/api"
	"listening/audio"
	"listening/beep"
	"listening/device"
	"listening/diagnosis"
	"listening/log"
	"listening/recorder"
	"listening/transcript"
)

const (
	unknownError           = "알 수 없는 오류"
	parseErrorMessage      = "서버 응답을 파싱할 수 없습니다."
	conversionFailedFormat = "음성 변환에 실패했습니다. (%s)"
	diagnosisFailedFormat  = "음성 분석에 실패했습니다. (%s)"
)

// captureFlags select where a recording comes from.
type captureFlags struct {
	file     string
	wav      string
	duration time.Duration
	gain     int32
}

func (f *captureFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "file", "", "upload an existing audio file instead of recording")
	cmd.Flags().StringVar(&f.wav, "wav", "", "replay a 16-bit mono WAV file through the recorder instead of the microphone")
	cmd.Flags().DurationVar(&f.duration, "duration", 0, "stop recording after this long (default: wait for Enter)")
	cmd.Flags().Int32Var(&f.gain, "gain", 0, "amplify quiet microphones by this factor")
}

// openMicrophone builds the capture capability for a recording session.
func (a *App) openMicrophone(f *captureFlags) (*audio.Microphone, func(), error) {
	var actx audio.Context
	var err error
	if f.wav != "" {
		actx, err = audio.NewFakeContextFromWAV(f.wav, true)
	} else {
		actx, err = audio.NewContext()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open audio: %w", err)
	}

	dev, err := audio.SelectDevice(actx, a.cfg.Recording.Device)
	if err != nil {
		actx.Close()
		return nil, nil, err
	}
	if dev != nil && audio.IsBluetooth(dev.Name) {
		log.Warnf("bluetooth input selected: %s", dev.Name)
	}

	scratch := filepath.Join(os.TempDir(), "listening")
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		actx.Close()
		return nil, nil, err
	}
	mic := audio.NewMicrophone(actx, dev, scratch, a.cfg.Recording.Format, uint32(a.cfg.Recording.SampleRate))
	mic.SetGain(f.gain)
	return mic, actx.Close, nil
}

func (a *App) newPipeline(mic recorder.Microphone, submit recorder.Submitter, opts ...recorder.Option) *recorder.Pipeline {
	opts = append([]recorder.Option{
		recorder.WithPolling(a.cfg.Recording.PollAttempts, a.cfg.Recording.PollInterval),
	}, opts...)
	return recorder.New(mic, a.cfg.Storage.RecordingsDir, submit, opts...)
}

// capture records one session (or takes --file) and hands it to submit.
func (a *App) capture(ctx context.Context, f *captureFlags, submit recorder.Submitter) (recorder.Outcome, error) {
	if f.file != "" {
		result, err := submit(ctx, f.file)
		return recorder.Outcome{Path: f.file, Result: result, Err: err}, err
	}

	mic, closeAudio, err := a.openMicrophone(f)
	if err != nil {
		return recorder.Outcome{}, err
	}
	defer closeAudio()

	var out recorder.Outcome
	p := a.newPipeline(mic, submit, recorder.OnOutcome(func(o recorder.Outcome) { out = o }))
	if err := p.Start(ctx); err != nil {
		beep.Play(beep.Failure)
		return recorder.Outcome{}, err
	}
	defer p.Close()
	beep.Play(beep.Start)

	if err := waitForStop(ctx, f.duration); err != nil {
		p.Close()
		return out, err
	}
	beep.Play(beep.Stop)
	fmt.Println("Uploading...")
	if err := p.Stop(ctx); err != nil {
		beep.Play(beep.Failure)
		return out, err
	}
	return out, nil
}

// waitForStop blocks until Enter, the duration elapses or ctx is done.
func waitForStop(ctx context.Context, d time.Duration) error {
	if d > 0 {
		fmt.Printf("● Recording for %s...\n", d)
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	fmt.Println("● Recording... press Enter to stop")
	enter := make(chan struct{})
	go func() {
		stdin.ReadString('\n')
		close(enter)
	}()
	select {
	case <-enter:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var diagnoseFlags captureFlags

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Record speech and show the diagnosis",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := app.client.DiagnosisHealth(ctx); err != nil {
			log.Warnf("diagnosis health check: %v", err)
		}

		out, err := app.capture(ctx, &diagnoseFlags, func(ctx context.Context, path string) (any, error) {
			return app.client.Diagnose(ctx, path)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, recorder.ErrPermissionDenied) {
				return err
			}
			return errors.New(diagnosisFailure(err))
		}
		d, _ := out.Result.(api.Diagnosis)
		fmt.Println(diagnosis.Render(d.Member.Nickname, diagnosis.Results(d)))
		return nil
	},
}

var (
	convertFlags captureFlags
	convertCopy  bool
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Record speech and convert it to text",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := app.client.ConversionHealth(ctx); err != nil {
			log.Warnf("conversion health check: %v", err)
		}

		history, closeStore, err := app.openTranscript(transcript.Conversion)
		if err != nil {
			log.Warnf("conversion history unavailable: %v", err)
			history, closeStore = transcript.New(nil, transcript.Conversion), func() {}
		}
		defer closeStore()

		out, err := app.capture(ctx, &convertFlags, func(ctx context.Context, path string) (any, error) {
			return app.client.Convert(ctx, path)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, recorder.ErrPermissionDenied) {
				return err
			}
			msg := conversionFailure(err)
			history.AppendAssistant(msg, transcript.StatusError)
			app.messages++
			return errors.New(msg)
		}

		conv, _ := out.Result.(api.Conversion)
		history.AppendAssistant(conv.Text, transcript.StatusSuccess)
		app.messages++
		fmt.Println(conv.Text)

		if convertCopy && conv.Text != "" {
			if err := device.CopyToClipboard(conv.Text); err != nil {
				log.Warnf("clipboard copy failed: %v", err)
			} else {
				fmt.Println("[✓ copied]")
			}
		}
		return nil
	},
}

// conversionFailure is the transcript text shown for a failed conversion.
func conversionFailure(err error) string {
	return fmt.Sprintf(conversionFailedFormat, failureReason(err))
}

func diagnosisFailure(err error) string {
	return fmt.Sprintf(diagnosisFailedFormat, failureReason(err))
}

// failureReason prefers the server's own message and never shows raw transport
// or decoder errors.
func failureReason(err error) string {
	if errors.Is(err, api.ErrParse) {
		return parseErrorMessage
	}
	return api.MessageOr(err, unknownError)
}

func init() {
	diagnoseFlags.register(diagnoseCmd)
	convertFlags.register(convertCmd)
	convertCmd.Flags().BoolVar(&convertCopy, "copy", false, "copy the text to the clipboard")

	rootCmd.AddCommand(diagnoseCmd, convertCmd)
}
