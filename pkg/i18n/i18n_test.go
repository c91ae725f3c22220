package i18n

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const messages = `{
  "en": {"import.progress": "Importing {{title}}: {{progress}}%", "import.done": "Done"},
  "de": {"import.progress": "Importiere {{title}}: {{progress}}%"}
}`

func TestLocalies(t *testing.T) {
	so := require.New(t)
	l := New("en")
	so.NoError(l.LoadFrom(strings.NewReader(messages)))
	so.ElementsMatch([]string{"en", "de"}, l.Languages())

	msg, err := l.GetWithArgs("de", "import.progress", map[string]string{"title": "Alpha", "progress": "40"})
	so.NoError(err)
	so.Equal("Importiere Alpha: 40%", msg)

	msg, err = l.GetWithArgs("de-AT", "import.progress", map[string]string{"title": "Alpha", "progress": "40"})
	so.NoError(err)
	so.Equal("Importiere Alpha: 40%", msg)

	msg, err = l.Get("de", "import.done")
	so.NoError(err)
	so.Equal("Done", msg, "missing messages fall back to the default language")

	_, err = l.GetWithArgs("en", "import.progress", map[string]string{"title": "Alpha"})
	so.Error(err)

	_, err = l.Get("en", "nope")
	so.ErrorIs(err, ErrNotFound)
}

func TestLocalies_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "i18n.json")
	require.NoError(t, os.WriteFile(path, []byte(messages), 0o600))
	l := New("en")
	require.NoError(t, l.Load(path))
	msg, err := l.Get("en", "import.done")
	require.NoError(t, err)
	require.Equal(t, "Done", msg)

	require.Error(t, l.Load(filepath.Join(t.TempDir(), "missing.json")))
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	require.Error(t, l.Load(path))
	_, err = l.Get("en", "import.done")
	require.NoError(t, err, "a failed reload keeps the previous catalog")
}
