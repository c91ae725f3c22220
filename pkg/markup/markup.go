// Package markup is a small structural walker over XML-like documents
// (container.xml, OPF, NCX). Element names are compared literally,
// prefix included, so "dc:title" and "title" are different names.
package markup

import (
	"bytes"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
)

var ErrNoRoot = errors.New("document has no root element")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Document struct {
	doc *etree.Document
}

// Parse reads data in permissive mode: unknown entities and sloppy markup
// are tolerated, charset declarations other than UTF-8 are honoured.
func Parse(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Permissive:    true,
	}
	if err := doc.ReadFromBytes(bytes.TrimPrefix(data, utf8BOM)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markup")
	}
	if doc.Root() == nil {
		return nil, ErrNoRoot
	}
	return &Document{doc: doc}, nil
}

func (d *Document) Root() *Element {
	return &Element{el: d.doc.Root()}
}

// Element is a node of the document tree. It remembers its position among
// its siblings so the tree can be walked child by child.
type Element struct {
	el     *etree.Element
	parent *Element
	pos    int
}

// Name returns the element name with its prefix, e.g. "dc:creator".
func (e *Element) Name() string {
	return qualified(e.el.Space, e.el.Tag)
}

// NameIs reports whether the element name equals any of names.
func (e *Element) NameIs(names ...string) bool {
	name := e.Name()
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Find returns the first element, in depth-first document order starting
// with e itself, whose name is one of names.
func (e *Element) Find(names ...string) *Element {
	if e.NameIs(names...) {
		return e
	}
	for c := e.FirstChild(); c != nil; c = c.NextSibling() {
		if found := c.Find(names...); found != nil {
			return found
		}
	}
	return nil
}

func (e *Element) FirstChild() *Element {
	kids := e.el.ChildElements()
	if len(kids) == 0 {
		return nil
	}
	return &Element{el: kids[0], parent: e, pos: 0}
}

func (e *Element) NextSibling() *Element {
	if e.parent == nil {
		return nil
	}
	kids := e.parent.el.ChildElements()
	next := e.pos + 1
	if next >= len(kids) {
		return nil
	}
	return &Element{el: kids[next], parent: e.parent, pos: next}
}

// Children returns the direct children named one of names, or all of them when names is empty.
func (e *Element) Children(names ...string) []*Element {
	var out []*Element
	for c := e.FirstChild(); c != nil; c = c.NextSibling() {
		if len(names) == 0 || c.NameIs(names...) {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the first direct child named one of names.
func (e *Element) Child(names ...string) *Element {
	for c := e.FirstChild(); c != nil; c = c.NextSibling() {
		if c.NameIs(names...) {
			return c
		}
	}
	return nil
}

// Attr returns the value of the attribute with the given literal name.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.el.Attr {
		if qualified(a.Space, a.Key) == name {
			return a.Value, true
		}
	}
	return "", false
}

// Text returns the concatenated character data of the element subtree.
func (e *Element) Text() string {
	var sb strings.Builder
	collectText(e.el, &sb)
	return sb.String()
}

func collectText(el *etree.Element, sb *strings.Builder) {
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			sb.WriteString(t.Data)
		case *etree.Element:
			collectText(t, sb)
		}
	}
}

func qualified(space, local string) string {
	if space == "" {
		return local
	}
	return space + ":" + local
}
