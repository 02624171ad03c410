package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"listening/api"
	"listening/assistant"
	"listening/device"
	"listening/log"
	"listening/recorder"
	"listening/transcript"
)

const (
	actionFailedPrefix = "액션 실패: "
	loginRequired      = "로그인이 필요합니다."

	historyLimit = 200
)

// dispatcher wires the assistant to desktop capability providers. With dryRun the
// actions are only recorded.
func (a *App) dispatcher(dryRun bool) (*assistant.Dispatcher, *assistant.Recorder) {
	cfg := assistant.Config{
		CharsPerSecond: a.cfg.Assistant.CharsPerSecond,
		ChunkInterval:  a.cfg.Assistant.ChunkInterval,
		SearchURL:      a.cfg.Assistant.SearchURL,
	}
	contacts := device.ContactBook{Path: a.cfg.Device.ContactsFile}

	if dryRun {
		rec := &assistant.Recorder{NoTelephony: !a.cfg.Device.Telephony, NoSMS: !a.cfg.Device.SMS}
		return assistant.NewDispatcher(a.client, contacts, rec, rec, rec.SMS(), cfg), rec
	}
	return assistant.NewDispatcher(a.client, contacts,
		device.Browser{},
		device.Dialer{Enabled: a.cfg.Device.Telephony},
		device.SMSComposer{Enabled: a.cfg.Device.SMS},
		cfg,
	), nil
}

// failureText turns a request error into the transcript line for one kind of call.
type failureText struct {
	status   string // non-2xx reply
	rejected string // isSuccess=false without a message
	other    string // transport and local failures
}

var (
	chatFailure   = failureText{status: "요청 실패", rejected: "요청 실패", other: "네트워크 오류"}
	voiceFailure  = failureText{status: "음성 인식 실패", rejected: "음성 인식 실패", other: "음성 업로드 오류"}
	uploadFailure = failureText{status: "업로드 실패", rejected: "업로드 실패", other: "PDF 업로드 오류"}
)

func (f failureText) format(err error) string {
	var rej *api.RejectedError
	var netErr *api.NetworkError
	switch {
	case errors.As(err, &rej) && (rej.Status < 200 || rej.Status > 299):
		return strings.TrimSpace(fmt.Sprintf("%s: %d %s", f.status, rej.Status, http.StatusText(rej.Status)))
	case errors.As(err, &rej):
		return orDefault(rej.Message, f.rejected)
	case errors.Is(err, api.ErrNotAuthenticated):
		return loginRequired
	case errors.Is(err, api.ErrParse):
		return parseErrorMessage
	case errors.As(err, &netErr):
		return f.other + ": " + netErr.Err.Error()
	default:
		return f.other + ": " + err.Error()
	}
}

var askDryRun bool

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message to the assistant and run its action",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, rec := app.dispatcher(askDryRun)
		err := ask(cmd.Context(), d, strings.Join(args, " "), os.Stdout)
		if rec != nil {
			printDryRun(rec, os.Stdout)
		}
		return err
	},
}

// ask streams one reply to w and waits for its action.
func ask(ctx context.Context, d *assistant.Dispatcher, text string, w io.Writer) error {
	turn, err := d.Dispatch(ctx, text)
	if err != nil {
		return errors.New(chatFailure.format(err))
	}
	for chunk := range turn.Chunks() {
		fmt.Fprint(w, chunk)
	}
	fmt.Fprintln(w)
	if err := turn.Wait(); err != nil {
		return errors.New(actionFailedPrefix + err.Error())
	}
	return nil
}

func printDryRun(rec *assistant.Recorder, w io.Writer) {
	urls, calls, texts := rec.Snapshot()
	for _, u := range urls {
		fmt.Fprintf(w, "[dry-run] open %s\n", u)
	}
	for _, n := range calls {
		fmt.Fprintf(w, "[dry-run] call %s\n", n)
	}
	for _, t := range texts {
		fmt.Fprintf(w, "[dry-run] sms %s: %s\n", strings.Join(t.Numbers, ","), t.Body)
	}
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Upload a PDF to the assistant's knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := app.client.UploadPDF(cmd.Context(), args[0])
		if err != nil {
			return errors.New(uploadFailure.format(err))
		}
		fmt.Println(msg)
		return nil
	},
}

var (
	chatDryRun  bool
	chatNoVoice bool
	chatFlags   captureFlags
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the assistant chat screen",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		history, closeStore, err := app.openTranscript(transcript.Assistant)
		if err != nil {
			return err
		}
		defer closeStore()
		if err := history.Restore(ctx, historyLimit); err != nil {
			log.Warnf("restore transcript: %v", err)
		}

		d, _ := app.dispatcher(chatDryRun)
		m := newChatModel(ctx, d, app.client, history)

		if !chatNoVoice {
			mic, closeAudio, err := app.openMicrophone(&chatFlags)
			if err != nil {
				log.Warnf("voice input disabled: %v", err)
			} else {
				defer closeAudio()
				outcomes := make(chan recorder.Outcome, 1)
				p := app.newPipeline(mic, func(ctx context.Context, path string) (any, error) {
					return app.client.SpeechToText(ctx, path)
				}, recorder.OnOutcome(func(o recorder.Outcome) {
					select {
					case outcomes <- o:
					default:
					}
				}))
				defer p.Close()
				m.voice = p
				m.outcomes = outcomes
			}
		}

		tuiProgram = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
		final, err := tuiProgram.Run()
		if fm, ok := final.(chatModel); ok {
			app.messages += fm.sent
		}
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	askCmd.Flags().BoolVar(&askDryRun, "dry-run", false, "print device actions instead of performing them")
	chatCmd.Flags().BoolVar(&chatDryRun, "dry-run", false, "record device actions instead of performing them")
	chatCmd.Flags().BoolVar(&chatNoVoice, "no-voice", false, "disable microphone input")
	chatCmd.Flags().StringVar(&chatFlags.wav, "wav", "", "replay a WAV file as voice input")
	chatCmd.Flags().Int32Var(&chatFlags.gain, "gain", 0, "amplify quiet microphones by this factor")

	rootCmd.AddCommand(askCmd, uploadCmd, chatCmd)
}
