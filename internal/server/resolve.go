package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// PageInfo is what a bookmarked page says about itself.
type PageInfo struct {
	Title   string
	Favicon string
}

// Resolver looks up the title and favicon of a page.
type Resolver interface {
	Resolve(ctx context.Context, pageURL string) (PageInfo, error)
}

// HTMLResolver fetches the page and reads <title> and the icon link from
// its head. Pages without an icon link get /favicon.ico on their host.
type HTMLResolver struct {
	Client *http.Client
}

func (h HTMLResolver) Resolve(ctx context.Context, pageURL string) (PageInfo, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return PageInfo{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return PageInfo{}, err
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return PageInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return PageInfo{}, fmt.Errorf("fetching %s: %s", pageURL, resp.Status)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return PageInfo{}, err
	}
	info := PageInfo{}
	var icon string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if info.Title == "" && n.FirstChild != nil {
					info.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "link":
				if icon == "" && isIconLink(n) {
					icon = attr(n, "href")
				}
			case "body":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if icon == "" {
		icon = "/favicon.ico"
	}
	if ref, err := url.Parse(icon); err == nil {
		info.Favicon = base.ResolveReference(ref).String()
	}
	return info, nil
}

func isIconLink(n *html.Node) bool {
	for _, rel := range strings.Fields(strings.ToLower(attr(n, "rel"))) {
		if rel == "icon" {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
