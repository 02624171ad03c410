package doctor

import (
	"os"

	"golang.org/x/term"
)

// keepTerminal snapshots the stdin terminal mode and returns a func that puts it
// back. It is a no-op when stdin is not a terminal.
func keepTerminal() func() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}
	state, err := term.GetState(fd)
	if err != nil {
		return func() {}
	}
	return func() { term.Restore(fd, state) }
}
