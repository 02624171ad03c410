package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"listening/assistant"
	"listening/beep"
	"listening/recorder"
	"listening/transcript"
)

// TUI message types
type turnStartedMsg struct{ turn *assistant.Turn }
type turnFailedMsg struct{ err error }
type chunkMsg struct {
	turn *assistant.Turn
	text string
}
type streamEndMsg struct{ turn *assistant.Turn }
type turnDoneMsg struct{ err error }
type voiceStartedMsg struct{ err error }
type voiceDoneMsg struct{ out recorder.Outcome }
type uploadDoneMsg struct {
	msg string
	err error
}
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
	tuiStateWaiting
)

const (
	chromeLines      = 3 // status line, input, help
	uploadedPrefix   = "업로드 완료: "
	micPermissionMsg = "마이크 권한을 허용해주세요."
)

type pdfUploader interface {
	UploadPDF(ctx context.Context, path string) (string, error)
}

type chatModel struct {
	ctx        context.Context
	dispatcher *assistant.Dispatcher
	uploader   pdfUploader
	history    *transcript.Transcript

	voice     *recorder.Pipeline
	outcomes  <-chan recorder.Outcome
	voiceLive bool // Start returned and the microphone is open

	input  textinput.Model
	view   viewport.Model
	ready  bool
	width  int
	height int

	state    tuiState
	recStart time.Time
	recFor   time.Duration
	partial  string // streamed reply text so far
	replying bool   // partial has an entry in history
	cancel   context.CancelFunc
	notice   string
	sent     int
}

var tuiProgram *tea.Program

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

func newChatModel(ctx context.Context, d *assistant.Dispatcher, up pdfUploader, history *transcript.Transcript) chatModel {
	in := textinput.New()
	in.Placeholder = "메시지를 입력하세요"
	in.Prompt = "› "
	in.CharLimit = 2000
	in.Focus()

	m := chatModel{
		ctx:        ctx,
		dispatcher: d,
		uploader:   up,
		history:    history,
		input:      in,
		view:       viewport.New(80, 20),
	}
	m.refresh()
	return m
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func nextChunk(turn *assistant.Turn) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-turn.Chunks()
		if !ok {
			return streamEndMsg{turn: turn}
		}
		return chunkMsg{turn: turn, text: c}
	}
}

func waitTurn(turn *assistant.Turn) tea.Cmd {
	return func() tea.Msg {
		return turnDoneMsg{err: turn.Wait()}
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-chromeLines, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.endTurn()
			if m.voice != nil {
				m.voice.Close()
			}
			return m, tea.Quit
		case "esc":
			if m.state == tuiStateWaiting && m.cancel != nil {
				m.cancel()
				m.notice = "canceled"
			}
			return m, nil
		case "ctrl+r":
			return m.toggleVoice()
		case "enter":
			return m.submit()
		case "pgup", "pgdown", "ctrl+u", "ctrl+d":
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case turnStartedMsg:
		// The reply entry is created by the first chunk so a turn canceled
		// before any text arrives leaves nothing behind.
		m.replying = false
		return m, nextChunk(msg.turn)

	case chunkMsg:
		m.partial += msg.text
		if m.replying {
			m.history.UpdateLastAssistant(m.partial)
		} else {
			m.history.AppendAssistant(m.partial, transcript.StatusSuccess)
			m.replying = true
		}
		m.refresh()
		return m, nextChunk(msg.turn)

	case streamEndMsg:
		return m, waitTurn(msg.turn)

	case turnDoneMsg:
		m.endTurn()
		if !m.replying && !errors.Is(msg.err, context.Canceled) {
			m.history.AppendAssistant("", transcript.StatusSuccess)
		}
		m.replying = false
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.history.AppendAssistant(actionFailedPrefix+msg.err.Error(), transcript.StatusError)
		}
		m.refresh()

	case turnFailedMsg:
		m.endTurn()
		if !errors.Is(msg.err, context.Canceled) {
			m.history.AppendAssistant(chatFailure.format(msg.err), transcript.StatusError)
		}
		m.refresh()

	case voiceStartedMsg:
		if msg.err != nil {
			m.state = tuiStateIdle
			m.notice = msg.err.Error()
			if errors.Is(msg.err, recorder.ErrPermissionDenied) {
				m.notice = micPermissionMsg
			}
			beep.Play(beep.Failure)
			return m, nil
		}
		if m.state == tuiStateRecording {
			beep.Play(beep.Start)
			m.voiceLive = true
			m.recStart = time.Now()
			return m, tuiTick()
		}

	case tickMsg:
		if m.state == tuiStateRecording && m.voiceLive {
			m.recFor = time.Time(msg).Sub(m.recStart)
			return m, tuiTick()
		}

	case voiceDoneMsg:
		m.state = tuiStateIdle
		if err := msg.out.Err; err != nil {
			if !errors.Is(err, context.Canceled) {
				beep.Play(beep.Failure)
				m.history.AppendAssistant(voiceFailure.format(err), transcript.StatusError)
				m.refresh()
			}
			return m, nil
		}
		text, _ := msg.out.Result.(string)
		if strings.TrimSpace(text) == "" {
			m.notice = "no speech recognized"
			return m, nil
		}
		return m.send(strings.TrimSpace(text))

	case uploadDoneMsg:
		m.state = tuiStateIdle
		if msg.err != nil {
			m.history.AppendAssistant(uploadFailure.format(msg.err), transcript.StatusError)
		} else {
			m.history.AppendAssistant(uploadedPrefix+msg.msg, transcript.StatusSuccess)
		}
		m.refresh()
	}
	return m, nil
}

func (m chatModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.state != tuiStateIdle {
		return m, nil
	}
	m.input.Reset()
	m.notice = ""

	switch {
	case text == "/clear":
		if err := m.history.Clear(m.ctx); err != nil {
			m.notice = err.Error()
		}
		m.refresh()
		return m, nil
	case strings.HasPrefix(text, "/upload "):
		return m.upload(strings.TrimSpace(strings.TrimPrefix(text, "/upload ")))
	}
	return m.send(text)
}

// send appends the user entry and starts one assistant turn.
func (m chatModel) send(text string) (tea.Model, tea.Cmd) {
	m.history.AppendUser(text)
	m.sent++
	m.state = tuiStateWaiting
	m.partial = ""
	m.replying = false
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.refresh()

	d := m.dispatcher
	return m, func() tea.Msg {
		turn, err := d.Dispatch(ctx, text)
		if err != nil {
			return turnFailedMsg{err: err}
		}
		return turnStartedMsg{turn: turn}
	}
}

func (m chatModel) upload(path string) (tea.Model, tea.Cmd) {
	if m.uploader == nil || path == "" {
		return m, nil
	}
	m.history.AppendUser("업로드: " + filepath.Base(path))
	m.state = tuiStateWaiting
	m.refresh()

	up, ctx := m.uploader, m.ctx
	return m, func() tea.Msg {
		msg, err := up.UploadPDF(ctx, path)
		return uploadDoneMsg{msg: msg, err: err}
	}
}

func (m chatModel) toggleVoice() (tea.Model, tea.Cmd) {
	if m.voice == nil {
		m.notice = "voice input unavailable"
		return m, nil
	}
	p, ctx := m.voice, m.ctx
	switch {
	case m.state == tuiStateIdle:
		m.state = tuiStateRecording
		m.voiceLive = false
		m.recFor = 0
		m.notice = ""
		return m, func() tea.Msg {
			return voiceStartedMsg{err: p.Start(ctx)}
		}
	case m.state == tuiStateRecording && m.voiceLive:
		m.state = tuiStateWaiting
		m.voiceLive = false
		beep.Play(beep.Stop)
		outcomes := m.outcomes
		return m, func() tea.Msg {
			err := p.Stop(ctx)
			select {
			case out := <-outcomes:
				return voiceDoneMsg{out: out}
			default:
				return voiceDoneMsg{out: recorder.Outcome{Err: err}}
			}
		}
	}
	return m, nil
}

func (m *chatModel) endTurn() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = tuiStateIdle
}

func (m *chatModel) refresh() {
	m.view.SetContent(m.renderTranscript())
	m.view.GotoBottom()
}

func (m chatModel) renderTranscript() string {
	msgs := m.history.Messages()
	if len(msgs) == 0 {
		return labelStyle.Render("No messages yet. Type a message, or press ctrl+r to speak.")
	}

	width := max(m.view.Width-2, 10)
	var b strings.Builder
	for _, msg := range msgs {
		label, style := "assistant", assistantStyle
		switch {
		case msg.IsUser:
			label, style = "you", userStyle
		case msg.Status == transcript.StatusError:
			style = errorStyle
		}
		text := msg.Text
		if text == "" && !msg.IsUser {
			text = "…"
		}
		b.WriteString(labelStyle.Render(label+" · "+msg.Timestamp.Format("15:04")) + "\n")
		b.WriteString(style.Width(width).Render(text) + "\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m chatModel) statusLine() string {
	var status string
	switch m.state {
	case tuiStateRecording:
		status = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			Render(fmt.Sprintf("● REC %.1fs", m.recFor.Seconds()))
	case tuiStateWaiting:
		status = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Render("◌ WAITING (esc to cancel)")
	default:
		status = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Render("○ STANDBY")
	}
	if m.notice != "" {
		status += "  " + noticeStyle.Render(m.notice)
	}
	return status
}

func (m chatModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	help := helpKeyStyle.Render("enter") + helpStyle.Render(" send  ") +
		helpKeyStyle.Render("ctrl+r") + helpStyle.Render(" voice  ") +
		helpKeyStyle.Render("/upload <pdf>") + helpStyle.Render("  ") +
		helpKeyStyle.Render("/clear") + helpStyle.Render("  ") +
		helpKeyStyle.Render("ctrl+c") + helpStyle.Render(" quit  ") +
		helpStyle.Render("listening "+version)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusLine(),
		m.view.View(),
		m.input.View(),
		help,
	)
}
