package i18n

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/valyala/fasttemplate"
	"go.uber.org/multierr"
)

var ErrNotFound = errors.New("not found")

type translation struct {
	template *fasttemplate.Template
	text     string
}

func (t *translation) UnmarshalJSON(data []byte) error {
	var text string
	err := json.Unmarshal(data, &text)
	if err != nil {
		return err
	}
	t.text = text
	t.template, err = fasttemplate.NewTemplate(text, "{{", "}}")
	return err
}

type Localies struct {
	mu       *sync.RWMutex
	cms      map[string]map[string]*translation // map[language_code]map[message_id]message
	fallback string
}

// New creates an empty catalog. Lookups for unknown languages use fallback.
func New(fallback string) *Localies {
	return &Localies{
		mu:       &sync.RWMutex{},
		fallback: fallback,
	}
}

func (l *Localies) Load(path string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	return l.LoadFrom(f)
}

func (l *Localies) LoadFrom(r io.Reader) error {
	var translations map[string]map[string]*translation
	if err := json.NewDecoder(r).Decode(&translations); err != nil {
		return errors.Wrap(err, "failed to decode translations")
	}
	l.mu.Lock()
	l.cms = translations
	l.mu.Unlock()
	return nil
}

func (l *Localies) Get(lang, id string) (string, error) {
	translation, ok := l.get(lang, id)
	if !ok {
		return "", ErrNotFound
	}
	return translation.text, nil
}

func (l *Localies) GetWithArgs(lang, id string, args map[string]string) (string, error) {
	translation, ok := l.get(lang, id)
	if !ok {
		return "", ErrNotFound
	}
	return translation.template.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		value, ok := args[tag]
		if !ok {
			return 0, fmt.Errorf("missing argument %s", tag)
		}
		return w.Write([]byte(value))
	})
}

// Languages lists the loaded language codes.
func (l *Localies) Languages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	langs := make([]string, 0, len(l.cms))
	for lang := range l.cms {
		langs = append(langs, lang)
	}
	return langs
}

// get looks the message up in lang, its base language ("pt" for "pt-BR") and the fallback.
func (l *Localies) get(lang, id string) (*translation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	candidates := []string{lang}
	if base, _, ok := strings.Cut(lang, "-"); ok {
		candidates = append(candidates, base)
	}
	candidates = append(candidates, l.fallback)
	for _, c := range candidates {
		langMap, ok := l.cms[strings.ToLower(c)]
		if !ok {
			continue
		}
		if translation, ok := langMap[id]; ok {
			return translation, true
		}
	}
	return nil, false
}
