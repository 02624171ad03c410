package device

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"listening/assistant"
)

type urlLog []string

func (l *urlLog) OpenURL(u string) error {
	*l = append(*l, u)
	return nil
}

func TestDialerOpensTelURL(t *testing.T) {
	var opened urlLog
	d := Dialer{Enabled: true, Opener: &opened}
	if err := d.Dial(context.Background(), "010-1234 5678"); err != nil {
		t.Fatal(err)
	}
	if len(opened) != 1 || opened[0] != "tel:01012345678" {
		t.Errorf("opened = %v", opened)
	}
	if (Dialer{}).Supported() {
		t.Error("zero Dialer must not claim telephony")
	}
}

func TestSMSURL(t *testing.T) {
	tests := []struct {
		numbers []string
		body    string
		want    string
	}{
		{[]string{"010-1111-2222"}, "", "sms:01011112222"},
		{[]string{"010-1111-2222", "(02) 123"}, "곧 도착", "sms:01011112222,02123?body=%EA%B3%A7+%EB%8F%84%EC%B0%A9"},
	}
	for _, tt := range tests {
		if got := SMSURL(tt.numbers, tt.body); got != tt.want {
			t.Errorf("SMSURL(%v, %q) = %q, want %q", tt.numbers, tt.body, got, tt.want)
		}
	}
}

func TestSMSComposer(t *testing.T) {
	var opened urlLog
	s := SMSComposer{Enabled: true, Opener: &opened}
	ok, err := s.Available(context.Background())
	if err != nil || !ok {
		t.Fatalf("Available = %v, %v", ok, err)
	}
	if err := s.Send(context.Background(), []string{"010"}, "hi"); err != nil {
		t.Fatal(err)
	}
	if len(opened) != 1 || opened[0] != "sms:010?body=hi" {
		t.Errorf("opened = %v", opened)
	}
}

func TestContactBook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.yaml")
	book := ContactBook{Path: path}

	contacts, err := book.Contacts(context.Background())
	if err != nil || len(contacts) != 0 {
		t.Fatalf("missing file: %v, %v", contacts, err)
	}

	yaml := "contacts:\n  - name: 엄마\n    phone_numbers: [\"010-1111-2222\"]\n  - first_name: 민수\n    last_name: 김\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := book.Add(assistant.Contact{Name: "아들", PhoneNumbers: []string{"010-9999-0000"}}); err != nil {
		t.Fatal(err)
	}

	contacts, err = book.Contacts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 3 {
		t.Fatalf("len = %d, want 3", len(contacts))
	}
	if contacts[1].DisplayName() != "민수 김" {
		t.Errorf("DisplayName = %q", contacts[1].DisplayName())
	}
	n, err := assistant.FindPhoneNumber(context.Background(), book, "아들")
	if err != nil || n != "010-9999-0000" {
		t.Errorf("FindPhoneNumber = %q, %v", n, err)
	}
}

func TestContactBookBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.yaml")
	os.WriteFile(path, []byte("contacts: [\n"), 0o600)
	if _, err := (ContactBook{Path: path}).Contacts(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}
