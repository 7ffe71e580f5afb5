package browser

import (
	"github.com/chromedp/cdproto/network"
	"github.com/dmitrijs2005/promoclaim/internal/vault"
)

func fromNetwork(raw []*network.Cookie) []vault.Cookie {
	out := make([]vault.Cookie, 0, len(raw))
	for _, c := range raw {
		if c == nil || c.Name == "" {
			continue
		}
		out = append(out, vault.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
			Secure: c.Secure,
		})
	}
	return out
}

func toParams(cookies []vault.Cookie) []*network.CookieParam {
	out := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" || c.Domain == "" {
			continue
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		out = append(out, &network.CookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   path,
			Secure: c.Secure,
		})
	}
	return out
}
