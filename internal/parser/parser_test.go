package parser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
    <DT><A HREF="https://top.example/" ICON="data:image/png;base64,AAA">Top</A>
    <DT><H3 ADD_DATE="1">Dev</H3>
    <DL><p>
        <DT><A HREF="https://go.dev/" TAGS="go, lang">The <b>Go</b> site</A>
        <DT><H3>Empty</H3>
        <DL><p>
        </DL><p>
        <DT><H3>Rust</H3>
        <DL><p>
            <DT><A HREF="https://rust-lang.org/"></A>
        </DL><p>
        <DT><A HREF="https://pkg.go.dev/">Packages</A>
    </DL><p>
    <DT><A>No href</A>
    <DT><A HREF="https://last.example/">Last</A>
</DL><p>
`

func TestParse(t *testing.T) {
	root, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, root.Bookmarks, 2)
	assert.Equal(t, Bookmark{Title: "Top", URL: "https://top.example/", Icon: "data:image/png;base64,AAA"}, root.Bookmarks[0])
	assert.Equal(t, "https://last.example/", root.Bookmarks[1].URL)

	require.Len(t, root.Folders, 1)
	dev := root.Folders[0]
	assert.Equal(t, "Dev", dev.Name)
	require.Len(t, dev.Bookmarks, 2)
	assert.Equal(t, "The Go site", dev.Bookmarks[0].Title)
	assert.Equal(t, []string{"go", "lang"}, dev.Bookmarks[0].Tags)
	assert.Equal(t, "Packages", dev.Bookmarks[1].Title)

	require.Len(t, dev.Folders, 2)
	assert.Equal(t, "Empty", dev.Folders[0].Name)
	assert.Zero(t, dev.Folders[0].Count())
	rust := dev.Folders[1]
	require.Len(t, rust.Bookmarks, 1)
	assert.Equal(t, "https://rust-lang.org/", rust.Bookmarks[0].Title, "untitled links use their URL")

	assert.Equal(t, 5, root.Count())
}

func TestWriteThenParse(t *testing.T) {
	root := &Folder{
		Bookmarks: []Bookmark{{Title: "A & B", URL: "https://a.example/?x=1&y=2"}},
		Folders: []*Folder{{
			Name: "<Dev>",
			Bookmarks: []Bookmark{
				{Title: "Go", URL: "https://go.dev/", Icon: "https://go.dev/favicon.ico", Tags: []string{"go", "lang"}},
			},
			Folders: []*Folder{{Name: "Empty"}},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, root))
	assert.Contains(t, buf.String(), `<DT><A HREF="https://a.example/?x=1&amp;y=2">A &amp; B</A>`)
	assert.Contains(t, buf.String(), `TAGS="go,lang"`)

	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}
