package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter asks for one line at a time
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewPrompter reads answers from in and writes questions to out.
// Questions should not go to the page stream, so out is usually stderr
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(in), out: out}
}

// Ask returns io.EOF when input is over
func (p *Prompter) Ask(label string) (string, error) {
	if _, err := fmt.Fprintf(p.out, "%s: ", label); err != nil {
		return "", err
	}

	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
		}
		return "", io.EOF
	}

	return strings.TrimRight(p.scanner.Text(), "\r"), nil
}
