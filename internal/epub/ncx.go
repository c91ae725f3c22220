package epub

import (
	"strings"

	"github.com/pechorka/quire/pkg/markup"
	"github.com/pkg/errors"
)

type TocEntry struct {
	Label string
	Href  string
	Level int
	// SpineIndex is the spine position the entry points at, -1 when it points outside the spine.
	SpineIndex int
}

// ParseNcx flattens the navMap of an NCX document in pre-order. Nested
// navPoints get their depth as Level. Entries without a label or a content
// src are skipped but their children are still visited.
func ParseNcx(data []byte, pkg *Package) ([]TocEntry, []string, error) {
	doc, err := markup.Parse(data)
	if err != nil {
		return nil, nil, errors.Wrap(ErrNcxParseFailed, err.Error())
	}
	navMap := doc.Root().Find("navMap", "ncx:navMap")
	if navMap == nil {
		return nil, nil, nil
	}
	b := tocBuilder{pkg: pkg}
	b.walk(navMap, 0)
	if b.found > MaxTocEntries {
		b.warnings = append(b.warnings, "table of contents truncated")
	}
	return b.entries, b.warnings, nil
}

type tocBuilder struct {
	pkg      *Package
	entries  []TocEntry
	found    int
	warnings []string
}

func (b *tocBuilder) walk(parent *markup.Element, level int) {
	for _, np := range parent.Children("navPoint", "ncx:navPoint") {
		label := navLabel(np)
		src := ""
		if content := np.Child("content", "ncx:content"); content != nil {
			src, _ = content.Attr("src")
		}
		if label != "" && src != "" {
			b.found++
			if len(b.entries) < MaxTocEntries {
				b.entries = append(b.entries, TocEntry{
					Label:      label,
					Href:       src,
					Level:      level,
					SpineIndex: b.spineIndex(src),
				})
			}
		}
		b.walk(np, level+1)
	}
}

func navLabel(np *markup.Element) string {
	nl := np.Child("navLabel", "ncx:navLabel")
	if nl == nil {
		return ""
	}
	text := nl.Child("text", "ncx:text")
	if text == nil {
		return ""
	}
	return strings.TrimSpace(text.Text())
}

func (b *tocBuilder) spineIndex(src string) int {
	if b.pkg == nil {
		return -1
	}
	mi, ok := b.pkg.ManifestIndexByHref(StripFragment(src))
	if !ok {
		return -1
	}
	return b.pkg.SpinePosition(mi)
}
