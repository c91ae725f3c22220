package epub

import (
	"fmt"
	"strings"

	"github.com/pechorka/quire/pkg/markup"
	"github.com/pkg/errors"
)

type MediaType int

const (
	MediaOther MediaType = iota
	MediaXHTML
)

func mediaTypeOf(mt string) MediaType {
	switch mt {
	case "application/xhtml+xml", "text/html":
		return MediaXHTML
	}
	return MediaOther
}

type ManifestItem struct {
	ID        string
	Href      string
	MediaType MediaType
	// ZipIndex is the archive entry holding the item, -1 when the archive has none.
	ZipIndex int
}

func (m ManifestItem) InArchive() bool {
	return m.ZipIndex >= 0
}

type Metadata struct {
	Title  string
	Author string
	BookID string
	OpfDir string
}

// Package is the parsed OPF document.
type Package struct {
	Metadata
	Manifest []ManifestItem
	// Spine holds manifest indices in reading order.
	Spine []int
	// Warnings lists non-fatal problems such as clamped capacities.
	Warnings []string
}

// Lookup resolves archive entry names to entry indices.
type Lookup interface {
	Find(name string) (int, bool)
}

// ParseOpf builds metadata, manifest and spine from the package document
// found at opfPath. Manifest hrefs are resolved against the archive through lookup.
func ParseOpf(data []byte, opfPath string, lookup Lookup) (*Package, error) {
	doc, err := markup.Parse(data)
	if err != nil {
		return nil, errors.Wrap(ErrOpfParseFailed, err.Error())
	}
	root := doc.Root()
	manifest := root.Find("manifest", "opf:manifest")
	if manifest == nil {
		return nil, errors.Wrap(ErrOpfParseFailed, "no manifest")
	}

	pkg := &Package{}
	pkg.OpfDir = OpfDir(opfPath)
	pkg.Title = metaText(root, MaxTitleLen, "dc:title", "title")
	pkg.Author = metaText(root, MaxAuthorLen, "dc:creator", "creator")
	pkg.BookID = Truncate(BookID(pkg.Title, pkg.Author), MaxBookIDLen)

	ids := pkg.readManifest(manifest, lookup)
	if spine := root.Find("spine", "opf:spine"); spine != nil {
		pkg.readSpine(spine, ids)
	}
	return pkg, nil
}

func metaText(root *markup.Element, max int, names ...string) string {
	el := root.Find(names...)
	if el == nil {
		return Unknown
	}
	text := strings.TrimSpace(el.Text())
	if text == "" {
		return Unknown
	}
	return Truncate(text, max)
}

func (p *Package) readManifest(manifest *markup.Element, lookup Lookup) map[string]int {
	ids := make(map[string]int)
	found := 0
	for _, item := range manifest.Children("item", "opf:item") {
		id, _ := item.Attr("id")
		href, _ := item.Attr("href")
		if id == "" || href == "" {
			continue
		}
		if _, dup := ids[id]; dup {
			p.warn("duplicate manifest id %q ignored", id)
			continue
		}
		found++
		if len(p.Manifest) >= MaxManifestItems {
			continue
		}
		mt, _ := item.Attr("media-type")
		zipIndex := -1
		if lookup != nil {
			if i, ok := lookup.Find(p.OpfDir + href); ok {
				zipIndex = i
			}
		}
		ids[id] = len(p.Manifest)
		p.Manifest = append(p.Manifest, ManifestItem{
			ID:        id,
			Href:      href,
			MediaType: mediaTypeOf(mt),
			ZipIndex:  zipIndex,
		})
	}
	if found > MaxManifestItems {
		p.warn("manifest truncated to %d of %d items", MaxManifestItems, found)
	}
	return ids
}

func (p *Package) readSpine(spine *markup.Element, ids map[string]int) {
	found := 0
	for _, ref := range spine.Children("itemref", "opf:itemref") {
		idref, _ := ref.Attr("idref")
		mi, ok := ids[idref]
		if !ok {
			continue
		}
		found++
		if len(p.Spine) < MaxSpineItems {
			p.Spine = append(p.Spine, mi)
		}
	}
	if found > MaxSpineItems {
		p.warn("spine truncated to %d of %d items", MaxSpineItems, found)
	}
}

func (p *Package) warn(format string, args ...interface{}) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// ManifestIndexByHref returns the index of the manifest item with the given href.
func (p *Package) ManifestIndexByHref(href string) (int, bool) {
	for i := range p.Manifest {
		if p.Manifest[i].Href == href {
			return i, true
		}
	}
	return -1, false
}

// SpinePosition returns the first spine position referencing manifest index mi, or -1.
func (p *Package) SpinePosition(mi int) int {
	for i, v := range p.Spine {
		if v == mi {
			return i
		}
	}
	return -1
}

// ChapterPath returns the archive entry name of spine item i.
func (p *Package) ChapterPath(i int) (string, bool) {
	if i < 0 || i >= len(p.Spine) {
		return "", false
	}
	return p.OpfDir + p.Manifest[p.Spine[i]].Href, true
}

// SpineHrefs returns the manifest hrefs of the spine in reading order.
func (p *Package) SpineHrefs() []string {
	out := make([]string, 0, len(p.Spine))
	for _, mi := range p.Spine {
		out = append(out, p.Manifest[mi].Href)
	}
	return out
}
