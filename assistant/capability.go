package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrContactNotFound     = errors.New("contact not found")
	ErrUnsupportedPlatform = errors.New("not supported on this platform")
	ErrSMSUnavailable      = errors.New("SMS is not available on this device")
)

type Contact struct {
	Name         string   `yaml:"name"`
	FirstName    string   `yaml:"first_name"`
	LastName     string   `yaml:"last_name"`
	PhoneNumbers []string `yaml:"phone_numbers"`
}

// DisplayName joins the non-empty name fields with a space.
func (c Contact) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{c.Name, c.FirstName, c.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

type ContactBook interface {
	Contacts(ctx context.Context) ([]Contact, error)
}

type Browser interface {
	OpenURL(url string) error
}

type Dialer interface {
	Supported() bool
	Dial(ctx context.Context, number string) error
}

type Messenger interface {
	Supported() bool
	Available(ctx context.Context) (bool, error)
	Send(ctx context.Context, numbers []string, body string) error
}

// FindPhoneNumber returns the first number of the first contact whose display
// name contains name. Matching is case-sensitive; contacts without a number are
// skipped.
func FindPhoneNumber(ctx context.Context, book ContactBook, name string) (string, error) {
	target := strings.TrimSpace(name)
	contacts, err := book.Contacts(ctx)
	if err != nil {
		return "", fmt.Errorf("read contacts: %w", err)
	}
	for _, c := range contacts {
		if !strings.Contains(c.DisplayName(), target) {
			continue
		}
		for _, n := range c.PhoneNumbers {
			if n != "" {
				return n, nil
			}
		}
	}
	return "", fmt.Errorf("%s: %w", target, ErrContactNotFound)
}
