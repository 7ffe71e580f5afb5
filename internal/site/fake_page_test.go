package site

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/promoclaim/internal/browser"
	"github.com/dmitrijs2005/promoclaim/internal/vault"
)

// fakePage is an in-memory page: present selectors, their texts, values
// and links, plus a record of what was done to it.
type fakePage struct {
	loc     string
	present map[string]bool
	texts   map[string]string
	values  map[string]string
	links   map[string][]browser.Link
	cookies []vault.Cookie
	broken  map[string]bool

	navigated []string
	clicked   []string
	typed     map[string]string
	set       []vault.Cookie
	started   bool
	closed    bool
	reloaded  int
}

func newFakePage() *fakePage {
	return &fakePage{
		present: map[string]bool{},
		texts:   map[string]string{},
		values:  map[string]string{},
		links:   map[string][]browser.Link{},
		broken:  map[string]bool{},
		typed:   map[string]string{},
	}
}

func (p *fakePage) Start(context.Context) error { p.started = true; return nil }
func (p *fakePage) Close() error                { p.closed = true; return nil }

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	p.loc = url
	return nil
}

func (p *fakePage) Location(context.Context) (string, error) { return p.loc, nil }

func (p *fakePage) Exists(_ context.Context, sel string) (bool, error) {
	if p.broken[sel] {
		return false, fmt.Errorf("bad selector %s", sel)
	}
	return p.present[sel], nil
}

func (p *fakePage) Text(_ context.Context, sel string) (string, error) { return p.texts[sel], nil }

func (p *fakePage) Value(_ context.Context, sel string) (string, error) { return p.values[sel], nil }

func (p *fakePage) Links(_ context.Context, sel string) ([]browser.Link, error) {
	if p.broken[sel] {
		return nil, fmt.Errorf("bad selector %s", sel)
	}
	return p.links[sel], nil
}

func (p *fakePage) Click(_ context.Context, sel string) error {
	if !p.present[sel] {
		return browser.ErrNoMatch
	}
	p.clicked = append(p.clicked, sel)
	return nil
}

func (p *fakePage) Type(_ context.Context, sel, value string) error {
	p.typed[sel] = value
	return nil
}

func (p *fakePage) Cookies(context.Context) ([]vault.Cookie, error) { return p.cookies, nil }

func (p *fakePage) SetCookies(_ context.Context, c []vault.Cookie) error {
	p.set = append(p.set, c...)
	return nil
}

func (p *fakePage) Reload(context.Context) error { p.reloaded++; return nil }

func (p *fakePage) Screenshot(_ context.Context, name string) (string, error) {
	return "/shots/" + name + ".png", nil
}
