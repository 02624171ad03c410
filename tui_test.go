package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"

	"listening/api"
	"listening/assistant"
	"listening/recorder"
	"listening/transcript"
)

// drive feeds every message produced by cmd back into the model until no command
// is left.
func drive(t *testing.T, m chatModel, cmd tea.Cmd) chatModel {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 10000 {
			t.Fatal("model did not settle")
		}
		msg := cmd()
		if msg == nil {
			break
		}
		next, c := m.Update(msg)
		m = next.(chatModel)
		cmd = c
	}
	return m
}

func typeAndSend(t *testing.T, m chatModel, text string) chatModel {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return drive(t, next.(chatModel), cmd)
}

type uploaderFunc func(ctx context.Context, path string) (string, error)

func (f uploaderFunc) UploadPDF(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

func TestChatStreamsReplyIntoTranscript(t *testing.T) {
	d, _ := newTestDispatcher(replying(api.ChatData{Message: "안녕하세요, 무엇을 도와드릴까요?"}), nil)
	history := transcript.New(nil, transcript.Assistant)
	m := newChatModel(context.Background(), d, nil, history)

	m = typeAndSend(t, m, "안녕")

	msgs := history.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if !msgs[0].IsUser || msgs[0].Text != "안녕" {
		t.Errorf("user entry = %+v", msgs[0])
	}
	if msgs[1].IsUser || msgs[1].Text != "안녕하세요, 무엇을 도와드릴까요?" || msgs[1].Status != transcript.StatusSuccess {
		t.Errorf("assistant entry = %+v", msgs[1])
	}
	if m.state != tuiStateIdle {
		t.Errorf("state = %v, want idle", m.state)
	}
	if m.input.Value() != "" {
		t.Error("input not cleared")
	}
	if m.sent != 1 {
		t.Errorf("sent = %d", m.sent)
	}
}

func TestChatActionFailureAddsErrorEntry(t *testing.T) {
	d, _ := newTestDispatcher(replying(api.ChatData{
		Message: "문자 보낼게요",
		Action:  "send_sms",
		Params:  map[string]any{"target": "아빠", "message": "늦어요"},
	}), assistant.FakeContacts{{Name: "엄마", PhoneNumbers: []string{"010-1234-5678"}}})
	history := transcript.New(nil, transcript.Assistant)
	m := newChatModel(context.Background(), d, nil, history)

	typeAndSend(t, m, "아빠한테 늦는다고 문자해")

	msgs := history.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3: %+v", len(msgs), msgs)
	}
	if msgs[1].Text != "문자 보낼게요" {
		t.Errorf("reply text = %q", msgs[1].Text)
	}
	last := msgs[2]
	if last.Status != transcript.StatusError || !strings.HasPrefix(last.Text, "액션 실패: ") {
		t.Errorf("error entry = %+v", last)
	}
}

func TestChatRequestFailure(t *testing.T) {
	d, _ := newTestDispatcher(chatFunc(func(context.Context, string) (api.ChatData, error) {
		return api.ChatData{}, &api.NetworkError{Op: "POST", URL: "http://x", Err: errors.New("timeout")}
	}), nil)
	history := transcript.New(nil, transcript.Assistant)
	m := newChatModel(context.Background(), d, nil, history)

	m = typeAndSend(t, m, "hi")

	msgs := history.Messages()
	if len(msgs) != 2 || msgs[1].Text != "네트워크 오류: timeout" || msgs[1].Status != transcript.StatusError {
		t.Fatalf("messages = %+v", msgs)
	}
	if m.state != tuiStateIdle || m.cancel != nil {
		t.Error("turn not finished")
	}
}

func TestChatIgnoresInputWhileWaiting(t *testing.T) {
	d, _ := newTestDispatcher(replying(api.ChatData{Message: "ok"}), nil)
	history := transcript.New(nil, transcript.Assistant)
	m := newChatModel(context.Background(), d, nil, history)
	m.state = tuiStateWaiting

	m.input.SetValue("second")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("expected no command while a turn is in flight")
	}
	if next.(chatModel).input.Value() != "second" {
		t.Error("input must be kept")
	}
	if history.Len() != 0 {
		t.Error("nothing should be appended")
	}
}

func TestChatEscBeforeReplyLeavesNoEntry(t *testing.T) {
	d, _ := newTestDispatcher(replying(api.ChatData{Message: "늦은 답장"}), nil)
	history := transcript.New(nil, transcript.Assistant)
	m := newChatModel(context.Background(), d, nil, history)

	m.input.SetValue("hi")
	next, dispatch := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	next, _ = next.(chatModel).Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = drive(t, next.(chatModel), dispatch)

	msgs := history.Messages()
	if len(msgs) != 1 || !msgs[0].IsUser {
		t.Fatalf("messages = %+v", msgs)
	}
	if m.state != tuiStateIdle || m.cancel != nil {
		t.Error("turn not finished")
	}
	if m.notice != "canceled" {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestChatClearCommand(t *testing.T) {
	history := transcript.New(nil, transcript.Assistant)
	history.AppendUser("old")
	history.AppendAssistant("reply", transcript.StatusSuccess)
	m := newChatModel(context.Background(), nil, nil, history)

	typeAndSend(t, m, "/clear")
	if history.Len() != 0 {
		t.Errorf("Len = %d after /clear", history.Len())
	}
}

func TestChatUpload(t *testing.T) {
	var gotPath string
	up := uploaderFunc(func(_ context.Context, path string) (string, error) {
		gotPath = path
		return "PDF 업로드 성공", nil
	})
	history := transcript.New(nil, transcript.Assistant)
	m := newChatModel(context.Background(), nil, up, history)

	typeAndSend(t, m, "/upload /docs/guide.pdf")

	if gotPath != "/docs/guide.pdf" {
		t.Errorf("uploaded %q", gotPath)
	}
	msgs := history.Messages()
	if len(msgs) != 2 || msgs[0].Text != "업로드: guide.pdf" || msgs[1].Text != "업로드 완료: PDF 업로드 성공" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestChatVoiceRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	mic := &recorder.FakeMicrophone{Fs: fs, Path: "/tmp/capture.wav", Data: []byte("RIFF")}
	outcomes := make(chan recorder.Outcome, 1)
	p := recorder.New(mic, "/data/recordings", func(context.Context, string) (any, error) {
		return "내일 일정 알려줘", nil
	},
		recorder.WithFs(fs),
		recorder.WithSleep(func(context.Context, time.Duration) error { return nil }),
		recorder.OnOutcome(func(o recorder.Outcome) { outcomes <- o }),
	)

	var asked string
	d, _ := newTestDispatcher(chatFunc(func(_ context.Context, message string) (api.ChatData, error) {
		asked = message
		return api.ChatData{Message: "내일은 회의가 있어요"}, nil
	}), nil)
	history := transcript.New(nil, transcript.Assistant)
	m := newChatModel(context.Background(), d, nil, history)
	m.voice = p
	m.outcomes = outcomes

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	m = next.(chatModel)
	next, _ = m.Update(cmd())
	m = next.(chatModel)
	if m.state != tuiStateRecording || !m.voiceLive {
		t.Fatalf("state = %v live = %v, want recording", m.state, m.voiceLive)
	}

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	m = drive(t, next.(chatModel), cmd)

	if asked != "내일 일정 알려줘" {
		t.Errorf("dispatched %q", asked)
	}
	msgs := history.Messages()
	if len(msgs) != 2 || msgs[1].Text != "내일은 회의가 있어요" {
		t.Errorf("messages = %+v", msgs)
	}
	if p.State() != recorder.Idle {
		t.Errorf("pipeline state = %v", p.State())
	}
}

func TestChatVoicePermissionDenied(t *testing.T) {
	mic := &recorder.FakeMicrophone{Fs: afero.NewMemMapFs(), Path: "/tmp/c.wav", Denied: true}
	m := newChatModel(context.Background(), nil, nil, transcript.New(nil, transcript.Assistant))
	m.voice = recorder.New(mic, "/data/recordings", nil, recorder.WithFs(mic.Fs))

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	m = drive(t, next.(chatModel), cmd)

	if m.state != tuiStateIdle {
		t.Errorf("state = %v, want idle", m.state)
	}
	if m.notice != micPermissionMsg {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestChatVoiceUnavailable(t *testing.T) {
	m := newChatModel(context.Background(), nil, nil, transcript.New(nil, transcript.Assistant))
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	if cmd != nil || next.(chatModel).notice == "" {
		t.Error("expected a notice and no command without a microphone")
	}
}

func TestChatViewAfterResize(t *testing.T) {
	history := transcript.New(nil, transcript.Assistant)
	history.AppendUser("hello")
	history.AppendAssistant("", transcript.StatusSuccess)
	m := newChatModel(context.Background(), nil, nil, history)

	if m.View() != "Loading..." {
		t.Error("view before first resize should be a placeholder")
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	view := next.(chatModel).View()
	for _, want := range []string{"STANDBY", "hello", "…"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
