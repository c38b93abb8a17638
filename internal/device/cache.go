// Package device owns the currently selected device profile and resolves
// devices to their bundled key-mapping blobs.
package device

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kalambet/keyprefs/internal/assets"
	"github.com/kalambet/keyprefs/internal/logging"
	"github.com/kalambet/keyprefs/internal/prefs"
)

const (
	DeviceKey     = "selected_device"
	DefaultDevice = "Q25"

	CurrencyKey     = "selected_currency"
	DefaultCurrency = "$"
)

// PrefStore defines the preference operations the Cache needs.
// Implemented by prefs.Adapter.
type PrefStore interface {
	Get(ns prefs.Namespace, key, def string) (string, error)
	Set(ns prefs.Namespace, key, value string) error
	Exists(ns prefs.Namespace, key string) (bool, error)
}

// BlobSource is a read-only keyed blob store. A missing blob must yield an
// error matching fs.ErrNotExist. Implemented by assets.Source.
type BlobSource interface {
	ReadBlob(path string) ([]byte, error)
}

// Cache is a read-through cache of the selected device. Once populated it
// serves reads from memory; only SetDevice replaces the cached value.
type Cache struct {
	prefs PrefStore
	blobs BlobSource
	log   *zap.Logger

	cached atomic.Pointer[string]
	loads  singleflight.Group
}

// NewCache creates a Cache. log may be nil.
func NewCache(p PrefStore, blobs BlobSource, log *zap.Logger) *Cache {
	return &Cache{
		prefs: p,
		blobs: blobs,
		log:   logging.OrNop(log),
	}
}

// SetDevice persists id and then caches it. The cache is updated even when
// the durable write fails; the write error is still returned. Empty or
// path-like ids are rejected before anything is written.
func (c *Cache) SetDevice(id string) error {
	if !validDeviceID(id) {
		return fmt.Errorf("device %q: %w", id, ErrInvalidDevice)
	}
	err := c.prefs.Set(prefs.DevicePrefs, DeviceKey, id)
	c.cached.Store(&id)
	if err != nil {
		c.log.Warn("persisting selected device failed; cache updated anyway",
			zap.String("device", id), zap.Error(err))
		return &IOError{Op: "write", Path: devicePrefPath(), Err: err}
	}
	c.log.Debug("selected device", zap.String("device", id))
	return nil
}

// Device returns the selected device, reading it from the store on first use.
func (c *Cache) Device() (string, error) {
	if p := c.cached.Load(); p != nil {
		return *p, nil
	}

	v, err, _ := c.loads.Do(DeviceKey, func() (any, error) {
		id, err := c.prefs.Get(prefs.DevicePrefs, DeviceKey, DefaultDevice)
		if err != nil {
			return "", &IOError{Op: "read", Path: devicePrefPath(), Err: err}
		}
		// Only fill an empty cache so a concurrent SetDevice is not
		// overwritten by this older read.
		if !c.cached.CompareAndSwap(nil, &id) {
			return *c.cached.Load(), nil
		}
		c.log.Debug("loaded selected device", zap.String("device", id))
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// IsDeviceSelected reports whether a device has ever been persisted. It goes
// to the store directly: a stored "Q25" and an unset key look the same in
// the cache.
func (c *Cache) IsDeviceSelected() (bool, error) {
	ok, err := c.prefs.Exists(prefs.DevicePrefs, DeviceKey)
	if err != nil {
		return false, &IOError{Op: "read", Path: devicePrefPath(), Err: err}
	}
	return ok, nil
}

// KeyMappingBlob returns the bundled key-mapping JSON for id. An empty id
// means the selected device. The blob is read on every call.
func (c *Cache) KeyMappingBlob(id string) (string, error) {
	if id == "" {
		var err error
		if id, err = c.Device(); err != nil {
			return "", err
		}
	}
	if !validDeviceID(id) {
		return "", fmt.Errorf("device %q: %w", id, ErrMappingNotFound)
	}

	p := assets.MappingPath(id)
	data, err := c.blobs.ReadBlob(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("device %q: %w", id, ErrMappingNotFound)
	}
	if err != nil {
		c.log.Error("reading key mapping failed", zap.String("path", p), zap.Error(err))
		return "", &IOError{Op: "read", Path: p, Err: err}
	}
	return string(data), nil
}

// Currency returns the selected currency symbol. It is not cached.
func (c *Cache) Currency() (string, error) {
	sym, err := c.prefs.Get(prefs.CurrencyPrefs, CurrencyKey, DefaultCurrency)
	if err != nil {
		return "", &IOError{Op: "read", Path: currencyPrefPath(), Err: err}
	}
	return sym, nil
}

func (c *Cache) SetCurrency(sym string) error {
	if err := c.prefs.Set(prefs.CurrencyPrefs, CurrencyKey, sym); err != nil {
		return &IOError{Op: "write", Path: currencyPrefPath(), Err: err}
	}
	return nil
}

func validDeviceID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func devicePrefPath() string {
	return string(prefs.DevicePrefs) + "/" + DeviceKey
}

func currencyPrefPath() string {
	return string(prefs.CurrencyPrefs) + "/" + CurrencyKey
}
