// Package parser reads and writes Netscape bookmark files, the HTML format
// browsers use for bookmark import and export.
package parser

import (
	"fmt"
	"html"
	"io"
	"strings"

	nethtml "golang.org/x/net/html"
)

// Folder is a folder of a bookmark file. The root folder of a parsed file
// has no name.
type Folder struct {
	Name      string     `yaml:"name,omitempty"`
	Bookmarks []Bookmark `yaml:"bookmarks,omitempty"`
	Folders   []*Folder  `yaml:"folders,omitempty"`
}

// Bookmark is a link of a bookmark file.
type Bookmark struct {
	Title string   `yaml:"title"`
	URL   string   `yaml:"url"`
	Icon  string   `yaml:"icon,omitempty"`
	Tags  []string `yaml:"tags,omitempty"`
}

// Count returns the number of bookmarks below f.
func (f *Folder) Count() int {
	n := len(f.Bookmarks)
	for _, sub := range f.Folders {
		n += sub.Count()
	}
	return n
}

// Parse reads a bookmark file. An <H3> names the folder whose contents are
// the next <DL>; links without an HREF are skipped.
func Parse(r io.Reader) (*Folder, error) {
	doc, err := nethtml.Parse(r)
	if err != nil {
		return nil, err
	}

	root := &Folder{}
	stack := []*Folder{root}
	var pending *Folder

	var walk func(*nethtml.Node)
	walk = func(n *nethtml.Node) {
		top := stack[len(stack)-1]
		pushed := false
		if n.Type == nethtml.ElementNode {
			switch n.Data {
			case "h3":
				f := &Folder{Name: strings.TrimSpace(text(n))}
				top.Folders = append(top.Folders, f)
				pending = f
				return
			case "dl":
				if pending != nil {
					stack = append(stack, pending)
					pending, pushed = nil, true
				}
			case "a":
				if b, ok := bookmark(n); ok {
					top.Bookmarks = append(top.Bookmarks, b)
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if pushed {
			stack = stack[:len(stack)-1]
		}
	}

	walk(doc)
	return root, nil
}

func bookmark(n *nethtml.Node) (Bookmark, bool) {
	var b Bookmark
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "href":
			b.URL = strings.TrimSpace(a.Val)
		case "icon":
			b.Icon = a.Val
		case "tags":
			for _, t := range strings.Split(a.Val, ",") {
				if t = strings.TrimSpace(t); t != "" {
					b.Tags = append(b.Tags, t)
				}
			}
		}
	}
	b.Title = strings.TrimSpace(text(n))
	if b.Title == "" {
		b.Title = b.URL
	}
	return b, b.URL != ""
}

func text(n *nethtml.Node) string {
	var sb strings.Builder
	var collect func(*nethtml.Node)
	collect = func(n *nethtml.Node) {
		if n.Type == nethtml.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

// Write emits root as a bookmark file. Bookmarks come before subfolders at
// every level.
func Write(w io.Writer, root *Folder) error {
	bw := &errWriter{w: w}
	bw.printf("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	bw.printf("<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	bw.printf("<TITLE>Bookmarks</TITLE>\n")
	bw.printf("<H1>Bookmarks</H1>\n")
	writeFolder(bw, root, 0)
	return bw.err
}

func writeFolder(w *errWriter, f *Folder, depth int) {
	indent := strings.Repeat("    ", depth)
	w.printf("%s<DL><p>\n", indent)
	for _, b := range f.Bookmarks {
		w.printf("%s    <DT><A HREF=\"%s\"", indent, html.EscapeString(b.URL))
		if b.Icon != "" {
			w.printf(" ICON=\"%s\"", html.EscapeString(b.Icon))
		}
		if len(b.Tags) > 0 {
			w.printf(" TAGS=\"%s\"", html.EscapeString(strings.Join(b.Tags, ",")))
		}
		w.printf(">%s</A>\n", html.EscapeString(b.Title))
	}
	for _, sub := range f.Folders {
		w.printf("%s    <DT><H3>%s</H3>\n", indent, html.EscapeString(sub.Name))
		writeFolder(w, sub, depth+1)
	}
	w.printf("%s</DL><p>\n", indent)
}

// errWriter keeps the first write error so Write can check once.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
