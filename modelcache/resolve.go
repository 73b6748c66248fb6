package modelcache

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/swdee/go-maskflow"
)

// ErrUnknownLocation is returned when a location is neither a known model
// name, an http(s) URL nor an existing file
var ErrUnknownLocation = errors.New("unknown model location")

// KnownModels maps the names of published models to their bundle URL
var KnownModels = map[string]string{
	"Microtubule": "https://storage.googleapis.com/nn-models/microtubule-v0.1.zip",
}

// Source is a resolved model bundle location
type Source struct {
	// Name is the cache entry name, the base name of the bundle without its
	// extension
	Name string
	// URL is set for bundles fetched over http(s)
	URL string
	// Path is set for bundles read from the local filesystem
	Path string
}

// Resolve maps location, a known model name, an http(s) URL or a path to a
// zip bundle, onto a Source
func Resolve(location string) (Source, error) {

	if u, ok := KnownModels[location]; ok {
		location = u
	}

	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {

		u, err := url.Parse(location)

		if err != nil {
			return Source{}, &maskflow.ConfigError{Op: "resolve model", Err: err}
		}

		name := trimExt(path.Base(u.Path))

		if name == "" || name == "/" || name == "." {
			return Source{}, &maskflow.ConfigError{Op: "resolve model",
				Err: fmt.Errorf("%w: no bundle name in %q", ErrUnknownLocation, location)}
		}

		return Source{Name: name, URL: location}, nil
	}

	info, err := os.Stat(location)

	if err != nil || !info.Mode().IsRegular() {
		return Source{}, &maskflow.ConfigError{Op: "resolve model",
			Err: fmt.Errorf("%w: %q", ErrUnknownLocation, location)}
	}

	return Source{Name: trimExt(filepath.Base(location)), Path: location}, nil
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
