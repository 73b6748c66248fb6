// Package modelcache fetches zipped model bundles and unpacks them once into
// a shared cache directory.
package modelcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/swdee/go-maskflow"
	"github.com/swdee/go-maskflow/lgr"
	"github.com/swdee/go-maskflow/params"
)

// StageDownload is the progress stage reported while a bundle downloads,
// Done and Total count bytes
const StageDownload maskflow.Stage = "download"

// ErrFetch is returned when a bundle cannot be downloaded
var ErrFetch = errors.New("model fetch failed")

// ErrIncompleteBundle is returned when an unpacked bundle lacks its
// parameters or a stage graph
var ErrIncompleteBundle = errors.New("incomplete model bundle")

// Cache is a directory of unpacked model bundles, one sub directory per
// bundle name
type Cache struct {
	root   string
	client *http.Client
	// Progress receives throttled download updates when set
	Progress maskflow.ProgressFunc
	group    singleflight.Group
}

// New returns a Cache rooted at root
func New(root string) *Cache {
	return &Cache{
		root:   root,
		client: &http.Client{Timeout: 10 * time.Minute},
	}
}

// Root returns the cache directory
func (c *Cache) Root() string {
	return c.root
}

// Dir returns the directory holding the unpacked bundle at location,
// fetching and unpacking it first when it is not cached.  Concurrent calls
// for the same bundle share one population.
func (c *Cache) Dir(ctx context.Context, location string) (string, error) {

	src, err := Resolve(location)

	if err != nil {
		return "", err
	}

	dir := filepath.Join(c.root, src.Name)

	if isDir(dir) {
		lgr.Logger.Debug("model cache hit", slog.String("dir", dir))
		return dir, nil
	}

	// the population is shared, so one caller giving up must not fail the
	// others waiting on it
	shared := context.WithoutCancel(ctx)

	ch := c.group.DoChan(src.Name, func() (interface{}, error) {
		// another caller may have published while this one waited
		if isDir(dir) {
			return dir, nil
		}

		return dir, c.populate(shared, src, dir)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()

	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		return res.Val.(string), nil
	}
}

// populate unpacks src into a temporary directory under root and renames it
// into place at dir
func (c *Cache) populate(ctx context.Context, src Source, dir string) error {

	start := time.Now()

	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return fmt.Errorf("error creating cache root: %w", err)
	}

	tmp, err := os.MkdirTemp(c.root, "."+src.Name+"-")

	if err != nil {
		return fmt.Errorf("error creating staging directory: %w", err)
	}

	defer os.RemoveAll(tmp)

	bundle := src.Path

	if src.URL != "" {
		bundle = filepath.Join(tmp, src.Name+".zip")

		if err := c.download(ctx, src.URL, bundle); err != nil {
			return err
		}
	}

	staged := filepath.Join(tmp, "bundle")

	if err := unzip(bundle, staged); err != nil {
		return fmt.Errorf("error unpacking %s: %w", src.Name, err)
	}

	root := bundleRoot(staged)

	if err := checkBundle(root); err != nil {
		return &maskflow.ConfigError{Op: "check model bundle " + src.Name, Err: err}
	}

	if err := os.Rename(root, dir); err != nil {
		return fmt.Errorf("error publishing %s: %w", src.Name, err)
	}

	lgr.Logger.Info("model cached",
		slog.String("name", src.Name),
		slog.String("dir", dir),
		slog.Duration("took", time.Since(start)),
	)

	return nil
}

// download fetches url into dst
func (c *Cache) download(ctx context.Context, url, dst string) error {

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}

	resp, err := c.client.Do(req)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %s", ErrFetch, url, resp.Status)
	}

	f, err := os.Create(dst)

	if err != nil {
		return fmt.Errorf("error creating %s: %w", dst, err)
	}

	defer f.Close()

	pw := &progressWriter{
		fn:       c.Progress,
		throttle: maskflow.NewThrottle(c.Progress, maskflow.DefaultProgressInterval),
		total:    int(resp.ContentLength),
	}

	if _, err := io.Copy(f, io.TeeReader(resp.Body, pw)); err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}

	pw.finish()

	return f.Close()
}

// bundleRoot returns dir, or its only sub directory when the bundle was
// zipped with a top level folder around the parameter file
func bundleRoot(dir string) string {

	if _, err := os.Stat(filepath.Join(dir, params.FileName)); err == nil {
		return dir
	}

	entries, err := os.ReadDir(dir)

	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dir
	}

	return filepath.Join(dir, entries[0].Name())
}

// checkBundle verifies dir holds valid parameters and every stage graph, a
// bundle is never published without them
func checkBundle(dir string) error {

	if _, err := params.Load(filepath.Join(dir, params.FileName)); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompleteBundle, err)
	}

	for _, st := range maskflow.Stages() {
		info, err := os.Stat(filepath.Join(dir, st.Graph))

		if err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("%w: missing %s", ErrIncompleteBundle, st.Graph)
		}
	}

	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// progressWriter counts downloaded bytes into throttled status updates
type progressWriter struct {
	fn       maskflow.ProgressFunc
	throttle *maskflow.Throttle
	done     int
	// total is the content length, zero or less when the server did not
	// send one
	total int
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.done += len(b)

	if p.total > 0 {
		p.throttle.Update(maskflow.Status{Stage: StageDownload, Done: p.done, Total: p.total})
	}

	return len(b), nil
}

// finish reports completion of a download with unknown length
func (p *progressWriter) finish() {
	if p.total <= 0 && p.fn != nil {
		p.fn(maskflow.Status{Stage: StageDownload, Done: p.done, Total: p.done})
	}
}
