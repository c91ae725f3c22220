package epub

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxManifestItems = 512
	MaxSpineItems    = 256
	MaxTocEntries    = 256

	MaxTitleLen  = 255
	MaxAuthorLen = 255
	MaxBookIDLen = 63
)

const Unknown = "Unknown"

// BookID returns the DJB2 hash of title followed by author as 8 lowercase hex digits.
func BookID(title, author string) string {
	var h uint32 = 5381
	for i := 0; i < len(title); i++ {
		h = h*33 + uint32(title[i])
	}
	for i := 0; i < len(author); i++ {
		h = h*33 + uint32(author[i])
	}
	return fmt.Sprintf("%08x", h)
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// StripFragment drops the "#fragment" part of an href.
func StripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}
