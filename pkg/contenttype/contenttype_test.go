package contenttype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsURLs(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		input := `https://www.gutenberg.org/ebooks/1.epub
https://www.gutenberg.org/ebooks/2.epub
https://www.gutenberg.org/ebooks/3.epub`
		require.True(t, IsURLs(input))
	})

	t.Run("fail", func(t *testing.T) {
		input := `https://www.gutenberg.org/ebooks/1.epub
not a url`
		require.False(t, IsURLs(input))
		require.False(t, IsURLs(""))
	})
}

func TestIsURL(t *testing.T) {
	require.True(t, IsURL(" https://example.com/book.epub "))
	require.False(t, IsURL("http://"))
	require.False(t, IsURL("ftp://example.com/book.epub"))
}

func TestIsEPUB(t *testing.T) {
	require.True(t, IsEPUB("application/epub+zip"))
	require.True(t, IsEPUB("application/octet-stream"))
	require.False(t, IsEPUB("text/plain; charset=utf-8"))
	require.False(t, IsEPUB(""))
}

func TestByExtension(t *testing.T) {
	require.Equal(t, "application/xhtml+xml", ByExtension("OEBPS/ch1.XHTML"))
	require.Equal(t, "application/octet-stream", ByExtension("OEBPS/blob"))
}
