package assistant

import (
	"context"
	"net/url"
	"time"

	"listening/api"
	"listening/log"
)

const DefaultSearchURL = "https://www.google.com/search?q="

// Chatter sends one user message to the assistant backend.
type Chatter interface {
	Chat(ctx context.Context, message string) (api.ChatData, error)
}

type Config struct {
	CharsPerSecond int
	ChunkInterval  time.Duration
	SearchURL      string
}

// Dispatcher turns user text into a streamed reply plus at most one device action.
type Dispatcher struct {
	chat     Chatter
	contacts ContactBook
	browser  Browser
	dialer   Dialer
	sms      Messenger
	cfg      Config
}

func NewDispatcher(chat Chatter, contacts ContactBook, browser Browser, dialer Dialer, sms Messenger, cfg Config) *Dispatcher {
	if cfg.CharsPerSecond <= 0 {
		cfg.CharsPerSecond = DefaultCharsPerSecond
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = DefaultChunkInterval
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = DefaultSearchURL
	}
	return &Dispatcher{
		chat:     chat,
		contacts: contacts,
		browser:  browser,
		dialer:   dialer,
		sms:      sms,
		cfg:      cfg,
	}
}

// Turn is one in-flight reply. Chunks is finite and cannot be restarted.
type Turn struct {
	Reply  Reply
	chunks <-chan string
	done   chan struct{}
	err    error
}

func (t *Turn) Chunks() <-chan string { return t.chunks }

// Wait blocks until the reply is delivered and its action has run, discarding any
// chunks nobody read. It returns the action error, or the context error when the
// stream was canceled and the action skipped.
func (t *Turn) Wait() error {
	for range t.chunks {
	}
	<-t.done
	return t.err
}

// Dispatch posts text and starts streaming the reply. Request failures are
// returned directly; action failures surface through Turn.Wait and never retract
// delivered text.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) (*Turn, error) {
	data, err := d.chat.Chat(ctx, text)
	if err != nil {
		return nil, err
	}
	reply := NewReply(data)

	src := Stream(ctx, reply.Message, d.cfg.CharsPerSecond, d.cfg.ChunkInterval)
	chunks := make(chan string)
	t := &Turn{Reply: reply, chunks: chunks, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		for c := range src {
			if ctx.Err() != nil {
				continue
			}
			select {
			case chunks <- c:
			case <-ctx.Done():
			}
		}
		close(chunks)
		if err := ctx.Err(); err != nil {
			t.err = err
			return
		}
		t.err = d.Execute(ctx, reply, text)
	}()
	return t, nil
}

// Execute performs the reply's action. userText is the search fallback.
func (d *Dispatcher) Execute(ctx context.Context, r Reply, userText string) error {
	var err error
	switch r.Action {
	case ActionWebSearch:
		q := r.Param("query")
		if q == "" {
			q = userText
		}
		err = d.browser.OpenURL(d.cfg.SearchURL + url.QueryEscape(q))
	case ActionCallPhone:
		if name := r.Param("name"); name != "" {
			err = d.call(ctx, name)
		}
	case ActionSendSMS:
		name, body := r.Param("name"), r.Param("message")
		if name != "" && body != "" {
			err = d.text(ctx, name, body)
		}
	default:
		return nil
	}
	log.Action(r.Action, err)
	return err
}

func (d *Dispatcher) call(ctx context.Context, name string) error {
	if d.dialer == nil || !d.dialer.Supported() {
		return ErrUnsupportedPlatform
	}
	number, err := FindPhoneNumber(ctx, d.contacts, name)
	if err != nil {
		return err
	}
	return d.dialer.Dial(ctx, number)
}

func (d *Dispatcher) text(ctx context.Context, name, body string) error {
	if d.sms == nil || !d.sms.Supported() {
		return ErrUnsupportedPlatform
	}
	number, err := FindPhoneNumber(ctx, d.contacts, name)
	if err != nil {
		return err
	}
	ok, err := d.sms.Available(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSMSUnavailable
	}
	return d.sms.Send(ctx, []string{number}, body)
}
