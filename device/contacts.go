package device

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"listening/assistant"
)

// ContactBook reads contacts from a YAML file:
//
//	contacts:
//	  - name: 엄마
//	    phone_numbers: ["010-1234-5678"]
//
// A missing file is an empty book.
type ContactBook struct {
	Path string
}

type contactFile struct {
	Contacts []assistant.Contact `yaml:"contacts"`
}

func (b ContactBook) Contacts(context.Context) ([]assistant.Contact, error) {
	data, err := os.ReadFile(b.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f contactFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", b.Path, err)
	}
	return f.Contacts, nil
}

// Add appends a contact and rewrites the file.
func (b ContactBook) Add(c assistant.Contact) error {
	contacts, err := b.Contacts(context.Background())
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(contactFile{Contacts: append(contacts, c)})
	if err != nil {
		return err
	}
	return os.WriteFile(b.Path, out, 0o600)
}
