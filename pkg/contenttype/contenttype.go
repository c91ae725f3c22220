package contenttype

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

const EPUB = "application/epub+zip"

// IsEPUB reports whether contentType names an EPUB or an opaque binary that may hold one.
func IsEPUB(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == EPUB || mt == "application/octet-stream" || mt == "application/zip"
}

// IsMultipart reports whether contentType is a multipart form upload.
func IsMultipart(contentType string) bool {
	return strings.HasPrefix(contentType, "multipart/form-data")
}

// ByExtension guesses the content type of a book resource from its file name.
func ByExtension(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".xhtml", ".xht":
		return "application/xhtml+xml"
	case ".ncx":
		return "application/x-dtbncx+xml"
	case ".opf":
		return "application/oebps-package+xml"
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// IsURL returns true if content contains only URL
func IsURL(content string) bool {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "http://") && !strings.HasPrefix(content, "https://") {
		return false
	}

	u, err := url.Parse(content)
	if err != nil {
		return false
	}

	// check if host is empty because url.Parse("http://") returns nil error
	if u.Hostname() == "" {
		return false
	}

	return true
}

// IsURLs returns true if every non empty line of content is a URL
func IsURLs(content string) bool {
	seen := false
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !IsURL(line) {
			return false
		}
		seen = true
	}
	return seen
}
