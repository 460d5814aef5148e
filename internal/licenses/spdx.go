package licenses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

var ErrUnknownLicense = errors.New("no SPDX license text")

// SPDXFetcher downloads texts from the spdx/license-list-data text directory.
type SPDXFetcher struct {
	BaseURL string
	Client  *retryablehttp.Client
	Log     logrus.FieldLogger
}

func NewSPDXFetcher(baseURL string, log logrus.FieldLogger) *SPDXFetcher {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = leveledLogger{log: log}
	return &SPDXFetcher{BaseURL: strings.TrimRight(baseURL, "/"), Client: rc, Log: log}
}

// Download writes LICENSES/<id>.txt for every identifier in ids. Existing
// files are left alone. Failures for single identifiers do not stop the others.
func (f *SPDXFetcher) Download(ctx context.Context, root string, ids []string) error {
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var errs []error
	for _, id := range Identifiers(ids) {
		dst := filepath.Join(dir, id+".txt")
		if _, err := os.Stat(dst); err == nil {
			f.Log.WithField("license", id).Debug("license text already present")
			continue
		}
		if err := f.fetch(ctx, id, dst); err != nil {
			f.Log.WithField("license", id).WithError(err).Warn("license text download failed")
			errs = append(errs, err)
			continue
		}
		f.Log.WithField("license", id).Infof("downloaded %s", filepath.Join(Dir, id+".txt"))
	}
	return errors.Join(errs...)
}

func (f *SPDXFetcher) fetch(ctx context.Context, id, dst string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"/"+id+".txt", nil)
	if err != nil {
		return err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrUnknownLicense, id)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %s", id, resp.Status)
	}

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("fetch %s: %w", id, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

type leveledLogger struct {
	log logrus.FieldLogger
}

func (l leveledLogger) with(kv []interface{}) logrus.FieldLogger {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return l.log.WithFields(fields)
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.with(kv).Error(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.with(kv).Warn(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.with(kv).Debug(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.with(kv).Debug(msg) }
