package fileloader

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/pechorka/quire/pkg/sizeconverter"
	"github.com/pkg/errors"
)

const (
	defaultMaxFileSize   = 20 * 1024 * 1024 // 20 MB
	defaultClientTimeout = 10 * time.Second
)

type Loader struct {
	maxFileSize int64 // in bytes
	maxSizeErr  error

	httpCli *http.Client
}

type Config struct {
	MaxFileSize int64
	HttpTimeout time.Duration
}

func NewLoader(cfg Config) *Loader {
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.HttpTimeout == 0 {
		cfg.HttpTimeout = defaultClientTimeout
	}
	return &Loader{
		maxFileSize: cfg.MaxFileSize,
		maxSizeErr:  errors.New("file is too big, max size is " + sizeconverter.HumanReadableSizeInMB(cfg.MaxFileSize)),
		httpCli: &http.Client{
			Timeout: cfg.HttpTimeout,
		},
	}
}

// MaxSizeErr is returned for files over the configured limit.
func (l *Loader) MaxSizeErr() error {
	return l.maxSizeErr
}

// DownloadFile downloads a file from the given URL and returns its content.
func (l *Loader) DownloadFile(ctx context.Context, URL string) ([]byte, error) {
	resp, err := l.get(ctx, URL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(l.limit(resp.Body))
	if err != nil {
		return nil, l.readErr(err)
	}
	return content, nil
}

// DownloadToFile streams the file at URL into a new file in dir and returns its path.
// The caller owns the file.
func (l *Loader) DownloadToFile(ctx context.Context, URL, dir string) (string, error) {
	resp, err := l.get(ctx, URL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	f, err := os.CreateTemp(dir, "download-*"+path.Ext(fileName(URL)))
	if err != nil {
		return "", errors.Wrap(err, "failed to create file")
	}
	if _, err = io.Copy(f, l.limit(resp.Body)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", l.readErr(err)
	}
	if err = f.Close(); err != nil {
		os.Remove(f.Name())
		return "", errors.Wrap(err, "failed to write file")
	}
	return f.Name(), nil
}

func (l *Loader) get(ctx context.Context, URL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "invalid url")
	}
	resp, err := l.httpCli.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to download file")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("failed to download file: %s", resp.Status)
	}
	if ctLen := resp.ContentLength; ctLen != -1 && ctLen > l.maxFileSize {
		resp.Body.Close()
		return nil, l.maxSizeErr
	}
	return resp, nil
}

func (l *Loader) limit(r io.ReadCloser) io.Reader {
	return http.MaxBytesReader(nil, r, l.maxFileSize)
}

func (l *Loader) readErr(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return l.maxSizeErr
	}
	return errors.Wrap(err, "failed to read file")
}

// fileName returns the last path element of URL, "" when it has none.
func fileName(URL string) string {
	u, err := url.Parse(URL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// FileName is the name a downloaded book is shown under.
func FileName(URL string) string {
	if name := fileName(URL); name != "" {
		return name
	}
	return URL
}
