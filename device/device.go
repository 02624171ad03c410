// Package device provides desktop implementations of the assistant's capability
// providers. Phone and SMS actions hand tel: and sms: URLs to the system handler.
package device

import (
	"context"
	"io"
	"net/url"
	"strings"

	cb "github.com/atotto/clipboard"
	"github.com/pkg/browser"
)

func init() {
	// xdg-open and friends print to the terminal otherwise.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

type URLOpener interface {
	OpenURL(url string) error
}

// Browser opens URLs with the system handler.
type Browser struct{}

func (Browser) OpenURL(u string) error {
	return browser.OpenURL(u)
}

// Dialer places calls by opening tel: URLs. Enabled mirrors whether the host has a
// registered telephony handler.
type Dialer struct {
	Enabled bool
	Opener  URLOpener
}

func (d Dialer) Supported() bool { return d.Enabled }

func (d Dialer) Dial(_ context.Context, number string) error {
	return d.opener().OpenURL("tel:" + compact(number))
}

func (d Dialer) opener() URLOpener {
	if d.Opener != nil {
		return d.Opener
	}
	return Browser{}
}

// SMSComposer opens the messaging app prefilled through an sms: URL.
type SMSComposer struct {
	Enabled bool
	Opener  URLOpener
}

func (s SMSComposer) Supported() bool { return s.Enabled }

func (s SMSComposer) Available(context.Context) (bool, error) { return s.Enabled, nil }

func (s SMSComposer) Send(_ context.Context, numbers []string, body string) error {
	return Dialer{Opener: s.Opener}.opener().OpenURL(SMSURL(numbers, body))
}

// SMSURL builds an RFC 5724 sms: URL.
func SMSURL(numbers []string, body string) string {
	cleaned := make([]string, len(numbers))
	for i, n := range numbers {
		cleaned[i] = compact(n)
	}
	u := "sms:" + strings.Join(cleaned, ",")
	if body != "" {
		u += "?body=" + url.QueryEscape(body)
	}
	return u
}

func compact(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, number)
}

// CopyToClipboard places text on the system clipboard.
func CopyToClipboard(text string) error {
	return cb.WriteAll(text)
}

func ReadClipboard() (string, error) {
	return cb.ReadAll()
}
