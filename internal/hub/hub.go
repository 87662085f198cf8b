// Package hub fetches remote artifacts (the network file and the preset
// example images) into a local cache directory, once per file.
package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = 5 * time.Minute

// DatasetURL is the download URL of filename inside a Hugging Face dataset
// repository, on its main revision.
func DatasetURL(repo, filename string) string {
	return fmt.Sprintf("https://huggingface.co/datasets/%s/resolve/main/%s", repo, url.PathEscape(filename))
}

// Fetcher downloads files into Dir.
type Fetcher struct {
	Dir    string
	client *http.Client
	logger logrus.FieldLogger
}

func NewFetcher(dir string, logger logrus.FieldLogger) *Fetcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Fetcher{
		Dir:    dir,
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
}

// WithClient swaps the HTTP client.
func (f *Fetcher) WithClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// Fetch returns the local path of rawURL saved as name, downloading it
// only when no non-empty copy is cached. An empty name uses the last URL
// path segment.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, name string) (string, error) {
	if name == "" {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", errors.Wrapf(err, "parse url %q", rawURL)
		}
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" || filepath.Base(name) != name {
		return "", errors.Errorf("invalid file name %q for %s", name, rawURL)
	}

	dest := filepath.Join(f.Dir, name)
	if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
		f.logger.WithField("path", dest).Debug("using cached artifact")
		return dest, nil
	}

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create cache dir")
	}

	start := time.Now()
	n, err := f.download(ctx, rawURL, dest)
	if err != nil {
		return "", err
	}
	f.logger.WithFields(logrus.Fields{
		"url":     rawURL,
		"path":    dest,
		"bytes":   n,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("downloaded artifact")
	return dest, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "build request for %s", rawURL)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "get %s", rawURL)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("get %s: status code %d", rawURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.Dir, filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, errors.Wrap(err, "create temp file")
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, errors.Wrapf(err, "write %s", dest)
	}
	if n == 0 {
		return 0, errors.Errorf("get %s: empty body", rawURL)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, errors.Wrapf(err, "move %s into place", dest)
	}
	return n, nil
}
