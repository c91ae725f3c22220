package request

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
)

func DecodeJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

// IntParam reads a non-negative integer URL parameter.
func IntParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", name)
	}
	if v < 0 {
		return 0, errors.Errorf("invalid %s: %d", name, v)
	}
	return v, nil
}

// Language picks the caller's language from the lang query parameter or
// the first Accept-Language tag.
func Language(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}
