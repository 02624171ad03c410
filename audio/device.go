package audio

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrSelectionCanceled = errors.New("device selection canceled")

// FindDevice returns the first device whose name or ID contains want, ignoring case.
func FindDevice(devices []DeviceInfo, want string) (*DeviceInfo, bool) {
	want = strings.ToLower(strings.TrimSpace(want))
	if want == "" {
		return nil, false
	}
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), want) ||
			strings.Contains(strings.ToLower(devices[i].ID), want) {
			return &devices[i], true
		}
	}
	return nil, false
}

// SelectDevice resolves the capture device. A configured name wins; otherwise a
// single device is used as is and several are offered in an interactive picker.
func SelectDevice(ctx Context, want string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}

	if want != "" {
		if d, ok := FindDevice(devices, want); ok {
			return d, nil
		}
		return nil, fmt.Errorf("no capture device matches %q", want)
	}

	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return &devices[0], nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}

	defer term.Restore(fd, oldState)

	cursor := 0
	renderList := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Select input device (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			btTag := ""
			if IsBluetooth(d.Name) {
				btTag = " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
			}
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, btTag)
			} else {
				fmt.Printf("    %s%s\r\n", d.Name, btTag)
			}
		}
	}

	renderList()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		if n == 1 {
			switch buf[0] {
			case 13: // Enter
				fmt.Print("\r\n")
				return &devices[cursor], nil
			case 3, 27: // Ctrl+C, Esc
				fmt.Print("\r\n")
				return nil, ErrSelectionCanceled
			case 'j':
				cursor = moveCursor(cursor, 1, len(devices))
			case 'k':
				cursor = moveCursor(cursor, -1, len(devices))
			}
		} else if n == 3 && buf[0] == 0x1b && buf[1] == '[' {
			switch buf[2] {
			case 'A':
				cursor = moveCursor(cursor, -1, len(devices))
			case 'B':
				cursor = moveCursor(cursor, 1, len(devices))
			}
		}

		lines := len(devices) + 2
		fmt.Printf("\x1b[%dA", lines)
		renderList()
	}
}

func moveCursor(cursor, delta, n int) int {
	cursor += delta
	if cursor < 0 {
		return 0
	}
	if cursor >= n {
		return n - 1
	}
	return cursor
}
