// Package browser drives a real Chrome instance over the DevTools protocol.
// It knows nothing about any particular storefront: callers pass selectors
// (CSS, "xpath:" or "text:") and URLs, and get back plain values.
package browser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/dmitrijs2005/promoclaim/internal/filex"
	"github.com/dmitrijs2005/promoclaim/internal/logging"
	"github.com/dmitrijs2005/promoclaim/internal/vault"
)

var (
	ErrNotStarted = errors.New("browser not started")
	ErrNoMatch    = errors.New("no element matches selector")
)

type Options struct {
	Headless      bool
	UserDataDir   string
	ExecPath      string
	ScreenshotDir string
	WindowWidth   int
	WindowHeight  int
}

// Link is an anchor reachable from a matched element.
type Link struct {
	Href  string `json:"href"`
	Label string `json:"label"`
	Image string `json:"image"`
}

type Browser struct {
	opts Options
	log  logging.Logger
	now  func() time.Time

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	closeOnce   sync.Once
}

func New(opts Options, log logging.Logger) *Browser {
	if opts.WindowWidth == 0 {
		opts.WindowWidth = 1366
	}
	if opts.WindowHeight == 0 {
		opts.WindowHeight = 900
	}
	return &Browser{opts: opts, log: log, now: time.Now}
}

func (b *Browser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.WindowSize(b.opts.WindowWidth, b.opts.WindowHeight),
	)
	if b.opts.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(b.opts.UserDataDir))
	}
	if b.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.opts.ExecPath))
	}
	return opts
}

// Start launches the browser. Its lifetime is bound to Close, not to ctx.
func (b *Browser) Start(ctx context.Context) error {
	if b.ctx != nil {
		return nil
	}
	if b.opts.UserDataDir != "" {
		if _, err := filex.EnsureDir(b.opts.UserDataDir); err != nil {
			return fmt.Errorf("profile dir: %w", err)
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), b.allocatorOptions()...)
	bctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			b.log.Debug(context.Background(), "devtools", "message", fmt.Sprintf(format, args...))
		}),
	)

	// The first Run allocates the browser and must use the browser context
	// itself, otherwise the process dies with the caller's context.
	if err := chromedp.Run(bctx); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("launch browser: %w", err)
	}

	b.ctx, b.cancel, b.allocCancel = bctx, cancel, allocCancel
	b.log.Info(ctx, "browser started", "headless", b.opts.Headless, "profile", b.opts.UserDataDir)
	return nil
}

// Close shuts the browser down. It is idempotent.
func (b *Browser) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.ctx == nil {
			return
		}
		err = chromedp.Cancel(b.ctx)
		b.cancel()
		b.allocCancel()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	})
	return err
}

// run executes actions in the browser, honouring the deadline and
// cancellation of ctx without tying the browser's lifetime to it.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	if b.ctx == nil {
		return ErrNotStarted
	}
	rctx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var dcancel context.CancelFunc
		rctx, dcancel = context.WithDeadline(rctx, dl)
		defer dcancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(rctx, actions...)
}

func (b *Browser) Navigate(ctx context.Context, url string) error {
	if err := b.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (b *Browser) Location(ctx context.Context) (string, error) {
	var loc string
	err := b.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (b *Browser) Reload(ctx context.Context) error {
	return b.run(ctx, chromedp.Reload())
}

func (b *Browser) eval(ctx context.Context, selector, body string, res any) error {
	sel, err := ParseSelector(selector)
	if err != nil {
		return err
	}
	return b.run(ctx, chromedp.Evaluate(sel.script(body), res))
}

// Exists reports whether at least one element matches.
func (b *Browser) Exists(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := b.eval(ctx, selector, "return els.length > 0;", &ok)
	return ok, err
}

// Text returns the visible text of the first match, "" when none matches.
func (b *Browser) Text(ctx context.Context, selector string) (string, error) {
	var s string
	err := b.eval(ctx, selector, `return els.length ? (els[0].innerText || els[0].textContent || "").trim() : "";`, &s)
	return s, err
}

// Value returns the current value of the first matching form field.
func (b *Browser) Value(ctx context.Context, selector string) (string, error) {
	var s string
	err := b.eval(ctx, selector, `return els.length ? String(els[0].value || "") : "";`, &s)
	return s, err
}

const linksBody = `return els.map(el => {
	const a = el.closest("a") || el.querySelector("a");
	const src = a || el;
	const img = src.querySelector("img");
	return {
		href: a ? a.href : "",
		label: (src.innerText || src.textContent || "").trim(),
		image: img ? (img.currentSrc || img.src || "") : ""
	};
});`

// Links returns, for each match, the enclosing (or first contained) anchor.
func (b *Browser) Links(ctx context.Context, selector string) ([]Link, error) {
	var links []Link
	if err := b.eval(ctx, selector, linksBody, &links); err != nil {
		return nil, err
	}
	return links, nil
}

const clickBody = `if (!els.length) return false;
els[0].scrollIntoView({ block: "center" });
els[0].click();
return true;`

// Click clicks the first match from script, which also reaches elements
// inside same-origin frames.
func (b *Browser) Click(ctx context.Context, selector string) error {
	var clicked bool
	if err := b.eval(ctx, selector, clickBody, &clicked); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}
	return nil
}

// Type replaces the content of a field with value using real key events.
func (b *Browser) Type(ctx context.Context, selector, value string) error {
	sel, err := ParseSelector(selector)
	if err != nil {
		return err
	}
	opt := sel.queryOption()
	return b.run(ctx,
		chromedp.WaitVisible(sel.Expr, opt),
		chromedp.SetValue(sel.Expr, "", opt),
		chromedp.SendKeys(sel.Expr, value, opt),
	)
}

func (b *Browser) Cookies(ctx context.Context) ([]vault.Cookie, error) {
	var raw []*network.Cookie
	err := b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return fromNetwork(raw), nil
}

func (b *Browser) SetCookies(ctx context.Context, cookies []vault.Cookie) error {
	params := toParams(cookies)
	if len(params) == 0 {
		return nil
	}
	err := b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

// Screenshot writes a full-page PNG named after name into the screenshot
// directory and returns its path.
func (b *Browser) Screenshot(ctx context.Context, name string) (string, error) {
	if b.opts.ScreenshotDir == "" {
		return "", errors.New("no screenshot directory configured")
	}
	var buf []byte
	if err := b.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	dir, err := filex.EnsureDir(b.opts.ScreenshotDir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, screenshotName(name, b.now()))
	if err := filex.WriteFileAtomic(path, buf, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func screenshotName(name string, at time.Time) string {
	return filex.SafeName(name) + "_" + at.UTC().Format("20060102T150405") + ".png"
}
