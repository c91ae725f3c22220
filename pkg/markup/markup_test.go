package markup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const opfDoc = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Alpha &amp; Omega</dc:title>
    <dc:creator id="author_0">Jane <![CDATA[Doe]]></dc:creator>
  </metadata>
  <manifest>
    <item id="c1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx"><itemref idref="c1"/><itemref idref="c2"/></spine>
</package>`

func TestParse(t *testing.T) {
	so := require.New(t)
	doc, err := Parse([]byte(opfDoc))
	so.NoError(err)

	root := doc.Root()
	so.Equal("package", root.Name())
	v, ok := root.Attr("version")
	so.True(ok)
	so.Equal("2.0", v)
	_, ok = root.Attr("missing")
	so.False(ok)

	title := root.Find("dc:title", "title")
	so.NotNil(title)
	so.Equal("Alpha & Omega", title.Text())

	creator := root.Find("dc:creator")
	so.NotNil(creator)
	so.Equal("Jane Doe", creator.Text())
	id, ok := creator.Attr("id")
	so.True(ok)
	so.Equal("author_0", id)

	so.Nil(root.Find("title"), "prefix is part of the name")

	manifest := root.Find("manifest")
	so.NotNil(manifest)
	items := manifest.Children("item")
	so.Len(items, 2)
	href, _ := items[1].Attr("href")
	so.Equal("ch2.xhtml", href)

	first := manifest.FirstChild()
	so.NotNil(first)
	second := first.NextSibling()
	so.NotNil(second)
	so.Nil(second.NextSibling())

	spine := manifest.NextSibling()
	so.NotNil(spine)
	so.True(spine.NameIs("spine", "opf:spine"))
	so.NotNil(spine.Child("itemref"))
	so.Nil(root.NextSibling())
}

func TestParse_Tolerant(t *testing.T) {
	t.Run("bom", func(t *testing.T) {
		doc, err := Parse(append([]byte{0xEF, 0xBB, 0xBF}, []byte(`<container><rootfiles/></container>`)...))
		require.NoError(t, err)
		require.Equal(t, "container", doc.Root().Name())
	})

	t.Run("unknown entity", func(t *testing.T) {
		doc, err := Parse([]byte(`<ncx><text>A&nbsp;B</text></ncx>`))
		require.NoError(t, err)
		el := doc.Root().Find("text")
		require.NotNil(t, el)
		require.Equal(t, "A&nbsp;B", el.Text())
	})

	t.Run("predefined entity", func(t *testing.T) {
		doc, err := Parse([]byte(`<ncx><text>Ch &amp; One</text></ncx>`))
		require.NoError(t, err)
		require.Equal(t, "Ch & One", doc.Root().Find("text").Text())
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Parse(nil)
		require.Error(t, err)
	})
}
