package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// GetSimpleText prints a prompt to w and reads a single line from reader.
// If EOF occurs after some input was read, the partial line is returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetSecret reads a secret without echo when fd is a terminal, and a plain
// line from reader otherwise (piped input). The caller should wipe the
// returned slice.
func GetSecret(fd int, reader *bufio.Reader, prompt string, w io.Writer) ([]byte, error) {
	if fd < 0 || !isTerminal(fd) {
		s, err := GetSimpleText(reader, prompt, io.Discard)
		return []byte(s), err
	}
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return nil, err
	}
	b, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return b, nil
}
