package console

import (
	"context"
	"strings"
)

// Navigator prints where the user is sent and remembers it.
// A terminal cannot follow a route, so the command decides what to do next
type Navigator struct {
	renderer *Renderer
	baseURL  string
	routes   chan string
}

func NewNavigator(r *Renderer, storefrontURL string) *Navigator {
	return &Navigator{
		renderer: r,
		baseURL:  strings.TrimRight(storefrontURL, "/"),
		routes:   make(chan string, 8),
	}
}

func (n *Navigator) Navigate(route string) {
	_ = n.renderer.Render(Page{Name: PageRedirect, State: route, Lines: []string{n.baseURL + route}})

	select {
	case n.routes <- route:
	default:
	}
}

// Wait blocks until the next navigation
func (n *Navigator) Wait(ctx context.Context) (string, error) {
	select {
	case route := <-n.routes:
		return route, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
