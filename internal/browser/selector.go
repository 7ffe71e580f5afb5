package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// Selector prefixes. A selector without a prefix is CSS.
const (
	PrefixXPath = "xpath:"
	PrefixText  = "text:"
)

// Kind tells how a selector expression is evaluated.
type Kind int

const (
	KindCSS Kind = iota
	KindXPath
)

// Selector is a parsed element locator.
type Selector struct {
	Kind Kind
	Expr string
}

// ParseSelector understands three forms: "xpath://a[@href]", "text:Free Now"
// (any element whose own text contains the phrase) and plain CSS.
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Selector{}, fmt.Errorf("empty selector")
	case strings.HasPrefix(s, PrefixXPath):
		expr := strings.TrimSpace(strings.TrimPrefix(s, PrefixXPath))
		if expr == "" {
			return Selector{}, fmt.Errorf("empty xpath in %q", s)
		}
		return Selector{Kind: KindXPath, Expr: expr}, nil
	case strings.HasPrefix(s, PrefixText):
		phrase := strings.TrimSpace(strings.TrimPrefix(s, PrefixText))
		if phrase == "" {
			return Selector{}, fmt.Errorf("empty text in %q", s)
		}
		return Selector{
			Kind: KindXPath,
			Expr: "//*[text()[contains(normalize-space(.), " + xpathLiteral(phrase) + ")]]",
		}, nil
	default:
		return Selector{Kind: KindCSS, Expr: s}, nil
	}
}

func (s Selector) queryOption() chromedp.QueryOption {
	if s.Kind == KindXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// findAll is a JS function resolving a selector against the top document and
// every same-origin frame, so checkout iframes are reachable.
const findAll = `function(kind, expr) {
	const docs = [document];
	for (const f of document.querySelectorAll("iframe")) {
		try { if (f.contentDocument) docs.push(f.contentDocument); } catch (e) {}
	}
	const out = [];
	for (const d of docs) {
		if (kind === "xpath") {
			const r = d.evaluate(expr, d, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			for (let i = 0; i < r.snapshotLength; i++) out.push(r.snapshotItem(i));
		} else {
			for (const el of d.querySelectorAll(expr)) out.push(el);
		}
	}
	return out;
}`

// script builds an expression that applies body to the matched elements,
// available to body as "els".
func (s Selector) script(body string) string {
	kind := "css"
	if s.Kind == KindXPath {
		kind = "xpath"
	}
	return "(() => { const els = (" + findAll + ")(" + jsString(kind) + ", " + jsString(s.Expr) + "); " + body + " })()"
}
