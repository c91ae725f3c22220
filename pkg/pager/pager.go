// Package pager cuts chapter text into pages that end on sentence
// boundaries where possible.
package pager

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Paginate packs paragraphs into pages of roughly size bytes. A paragraph
// never shares a page with the next one once the page is full, and a
// paragraph longer than size is split after a sentence, then after a word,
// then at a rune boundary.
func Paginate(paragraphs []string, size int) []string {
	if size <= 0 {
		size = 1
	}
	var (
		pages []string
		page  strings.Builder
	)
	flush := func() {
		if page.Len() > 0 {
			pages = append(pages, page.String())
			page.Reset()
		}
	}
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if page.Len() > 0 && page.Len()+1+len(p) > size {
			flush()
		}
		for len(p) > size {
			cut := splitPoint(p, size)
			if page.Len() > 0 {
				flush()
			}
			pages = append(pages, strings.TrimSpace(p[:cut]))
			p = strings.TrimSpace(p[cut:])
		}
		if p == "" {
			continue
		}
		if page.Len() > 0 {
			page.WriteByte('\n')
		}
		page.WriteString(p)
	}
	flush()
	return pages
}

// splitPoint returns the byte offset at which s should be cut so the first
// part is at most size bytes.
func splitPoint(s string, size int) int {
	if i := lastSentenceEnd(s[:size+1]); i > 0 {
		return i
	}
	if i := strings.LastIndexFunc(s[:size+1], unicode.IsSpace); i > 0 {
		return i
	}
	return runeBoundary(s, size)
}

// lastSentenceEnd finds the last ".", "!" or "?" run followed by a space.
// Dots of an abbreviation like "e.g." do not end a sentence.
func lastSentenceEnd(s string) int {
	for i := len(s) - 2; i > 0; i-- {
		if !isSpace(s[i+1]) || !isTerminator(s[i]) {
			continue
		}
		end := i + 1
		for i > 0 && isTerminator(s[i-1]) {
			i--
		}
		if s[i] == '.' && inWord(s, i) {
			continue
		}
		return end
	}
	return -1
}

func inWord(s string, i int) bool {
	return i >= 2 && s[i-2] == '.'
}

func runeBoundary(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	if n == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return n
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t'
}
