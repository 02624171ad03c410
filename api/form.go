package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"listening/recorder"
)

const (
	AudioField = "audio"
	PDFField   = "pdf"

	genericAudioType = "audio/*"
)

// MimeType maps an audio file extension (with or without the dot) to its upload content type.
func MimeType(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "m4a":
		return "audio/m4a"
	case "caf":
		return "audio/x-caf"
	case "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	default:
		return genericAudioType
	}
}

type formPart struct {
	field       string
	path        string
	name        string
	contentType string
}

// Form is a multipart body backed by files on disk. It is rebuilt on every send so
// a retried request carries the same content.
type Form struct {
	parts []formPart
}

// AudioForm builds the single-field body the diagnosis and conversion endpoints expect.
func AudioForm(path string, now time.Time) *Form {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		ext = recorder.DefaultExt()
	}
	return &Form{parts: []formPart{{
		field:       AudioField,
		path:        path,
		name:        fmt.Sprintf("recording-%d.%s", now.UnixMilli(), ext),
		contentType: MimeType(ext),
	}}}
}

func PDFForm(path string) *Form {
	return &Form{parts: []formPart{{
		field:       PDFField,
		path:        path,
		name:        filepath.Base(path),
		contentType: "application/pdf",
	}}}
}

// build encodes the form; the returned content type carries the writer's boundary.
func (f *Form) build() (io.Reader, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for _, p := range f.parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.name))
		h.Set("Content-Type", p.contentType)
		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		file, err := os.Open(p.path)
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", p.field, err)
		}
		_, err = io.Copy(part, file)
		file.Close()
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", p.field, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}

func (f *Form) describe() (name, contentType string, size int64) {
	if len(f.parts) == 0 {
		return "", "", 0
	}
	p := f.parts[0]
	if info, err := os.Stat(p.path); err == nil {
		size = info.Size()
	}
	return p.name, p.contentType, size
}
