// Package epubtest builds EPUB archives in memory for tests.
package epubtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

type File struct {
	Name     string
	Body     string
	Compress bool
}

// Build writes files in order into a ZIP archive.
func Build(files ...File) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		method := zip.Store
		if f.Compress {
			method = zip.Deflate
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.Name, Method: method})
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write([]byte(f.Body)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Container(opfPath string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="` + opfPath + `" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
}

type Item struct {
	ID        string
	Href      string
	MediaType string
}

// Package renders an OPF document. Every item listed in spine is referenced by id.
func Package(title, author string, items []Item, spine []string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)
	if title != "" {
		fmt.Fprintf(&sb, "    <dc:title>%s</dc:title>\n", title)
	}
	if author != "" {
		fmt.Fprintf(&sb, "    <dc:creator id=\"author_0\">%s</dc:creator>\n", author)
	}
	sb.WriteString("  </metadata>\n  <manifest>\n")
	for _, it := range items {
		fmt.Fprintf(&sb, "    <item id=%q href=%q media-type=%q/>\n", it.ID, it.Href, it.MediaType)
	}
	sb.WriteString("  </manifest>\n  <spine toc=\"ncx\">\n")
	for _, id := range spine {
		fmt.Fprintf(&sb, "    <itemref idref=%q/>\n", id)
	}
	sb.WriteString("  </spine>\n</package>\n")
	return sb.String()
}

type NavPoint struct {
	Label    string
	Src      string
	Children []NavPoint
}

func NCX(points ...NavPoint) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
`)
	writeNavPoints(&sb, points)
	sb.WriteString("  </navMap>\n</ncx>\n")
	return sb.String()
}

func writeNavPoints(sb *strings.Builder, points []NavPoint) {
	for _, p := range points {
		sb.WriteString("<navPoint>")
		if p.Label != "" {
			fmt.Fprintf(sb, "<navLabel><text>%s</text></navLabel>", p.Label)
		}
		if p.Src != "" {
			fmt.Fprintf(sb, "<content src=%q/>", p.Src)
		}
		writeNavPoints(sb, p.Children)
		sb.WriteString("</navPoint>\n")
	}
}

func Chapter(title, body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>` + title + `</title></head>
<body><h1>` + title + `</h1><p>` + body + `</p></body></html>`
}

// Sample returns the canonical two chapter book: control files stored,
// chapters deflated, one stylesheet and an NCX.
func Sample() ([]byte, error) {
	return Build(SampleFiles()...)
}

func SampleFiles() []File {
	items := []Item{
		{ID: "c1", Href: "ch1.xhtml", MediaType: "application/xhtml+xml"},
		{ID: "c2", Href: "ch2.xhtml", MediaType: "application/xhtml+xml"},
		{ID: "css", Href: "style.css", MediaType: "text/css"},
		{ID: "ncx", Href: "toc.ncx", MediaType: "application/x-dtbncx+xml"},
	}
	return []File{
		{Name: "mimetype", Body: "application/epub+zip"},
		{Name: "META-INF/container.xml", Body: Container("OEBPS/content.opf")},
		{Name: "OEBPS/content.opf", Body: Package("Alpha", "Zed", items, []string{"c1", "c2"})},
		{Name: "OEBPS/toc.ncx", Body: NCX(
			NavPoint{Label: "One", Src: "ch1.xhtml"},
			NavPoint{Label: "Two", Src: "ch2.xhtml#s"},
		)},
		{Name: "OEBPS/ch1.xhtml", Body: Chapter("One", "First chapter text."), Compress: true},
		{Name: "OEBPS/ch2.xhtml", Body: Chapter("Two", "Second chapter text."), Compress: true},
		{Name: "OEBPS/style.css", Body: "body { margin: 0; }", Compress: true},
	}
}
