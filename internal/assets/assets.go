// Package assets serves the per-device key-mapping files bundled with the app.
package assets

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
)

const (
	devicesDir  = "devices"
	mappingFile = "alt_key_mappings.json"
)

//go:embed devices
var bundleFS embed.FS

// MappingPath returns the location of a device's key-mapping blob.
func MappingPath(deviceID string) string {
	return path.Join(devicesDir, deviceID, mappingFile)
}

// Source is a read-only keyed blob store backed by an fs.FS.
type Source struct {
	fsys fs.FS
}

// New wraps fsys. Paths passed to ReadBlob are resolved relative to its root.
func New(fsys fs.FS) *Source {
	return &Source{fsys: fsys}
}

// Bundled returns a Source over the mappings compiled into the binary.
func Bundled() *Source {
	return New(bundleFS)
}

// Dir returns a Source over an on-disk asset directory laid out as
// <dir>/devices/<id>/alt_key_mappings.json.
func Dir(dir string) *Source {
	return New(os.DirFS(dir))
}

// ReadBlob returns the full contents at p. A missing blob yields an error
// matching fs.ErrNotExist.
func (s *Source) ReadBlob(p string) ([]byte, error) {
	if !fs.ValidPath(p) {
		return nil, &fs.PathError{Op: "read", Path: p, Err: fs.ErrNotExist}
	}
	return fs.ReadFile(s.fsys, p)
}

// Devices lists device identifiers that have a key-mapping blob, sorted.
func (s *Source) Devices() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, devicesDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := fs.Stat(s.fsys, MappingPath(e.Name())); err != nil {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}
