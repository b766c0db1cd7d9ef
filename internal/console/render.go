// Package console renders the authentication pages in a terminal.
// Pages go to stdout as text or JSON lines, prompts read from stdin.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Page is a snapshot of what a flow shows
type Page struct {
	Name  string   `json:"page"`
	State string   `json:"state"`
	Lines []string `json:"lines,omitempty"`
	Error string   `json:"error,omitempty"`
	Busy  bool     `json:"busy,omitempty"`
}

// Renderer writes pages one after another. Safe for concurrent use:
// the success redirect fires from a timer goroutine
type Renderer struct {
	mu     sync.Mutex
	w      io.Writer
	format string
}

func NewRenderer(w io.Writer, format string) (*Renderer, error) {
	switch format {
	case FormatText, FormatJSON:
	case "":
		format = FormatText
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}

	return &Renderer{w: w, format: format}, nil
}

func (r *Renderer) Render(p Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.format == FormatJSON {
		return json.NewEncoder(r.w).Encode(p)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", p.Name, p.State)
	for _, line := range p.Lines {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	if p.Error != "" {
		fmt.Fprintf(&b, "  error: %s\n", p.Error)
	}

	_, err := io.WriteString(r.w, b.String())
	return err
}
