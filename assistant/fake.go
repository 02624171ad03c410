package assistant

import (
	"context"
	"sync"
)

// FakeContacts is an in-memory contact book.
type FakeContacts []Contact

func (f FakeContacts) Contacts(context.Context) ([]Contact, error) { return f, nil }

// Recorder captures device actions instead of performing them. It satisfies
// Browser, Dialer and Messenger.
type Recorder struct {
	NoTelephony bool
	NoSMS       bool
	SMSOffline  bool

	mu    sync.Mutex
	URLs  []string
	Calls []string
	Texts []Text
}

type Text struct {
	Numbers []string
	Body    string
}

func (r *Recorder) OpenURL(url string) error {
	r.mu.Lock()
	r.URLs = append(r.URLs, url)
	r.mu.Unlock()
	return nil
}

// Supported reports telephony support. SMS support is reported by the SMS view.
func (r *Recorder) Supported() bool { return !r.NoTelephony }

func (r *Recorder) Dial(_ context.Context, number string) error {
	r.mu.Lock()
	r.Calls = append(r.Calls, number)
	r.mu.Unlock()
	return nil
}

// SMS returns a Messenger view of the recorder.
func (r *Recorder) SMS() Messenger { return smsRecorder{r} }

type smsRecorder struct{ r *Recorder }

func (s smsRecorder) Supported() bool { return !s.r.NoSMS }

func (s smsRecorder) Available(context.Context) (bool, error) { return !s.r.SMSOffline, nil }

func (s smsRecorder) Send(_ context.Context, numbers []string, body string) error {
	s.r.mu.Lock()
	s.r.Texts = append(s.r.Texts, Text{Numbers: numbers, Body: body})
	s.r.mu.Unlock()
	return nil
}

func (r *Recorder) Snapshot() (urls, calls []string, texts []Text) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.URLs...), append([]string(nil), r.Calls...), append([]Text(nil), r.Texts...)
}
