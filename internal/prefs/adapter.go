// Package prefs gives get/set/exists access to named durable preference
// namespaces without tying callers to a concrete storage mechanism.
package prefs

import "fmt"

// Namespace names a group of preferences persisted together.
type Namespace string

const (
	CurrencyPrefs Namespace = "currency_prefs"
	DevicePrefs   Namespace = "device_prefs"
)

// Backend defines the storage operations the Adapter needs.
// Implemented by storage.Store.
type Backend interface {
	GetPref(namespace, key string) (val string, ok bool, err error)
	SetPref(namespace, key, value string) error
	HasPref(namespace, key string) (bool, error)
}

// Adapter is a thin synchronous wrapper over a Backend. A missing key is
// never an error: Get returns the caller-supplied default instead.
type Adapter struct {
	backend Backend
}

// NewAdapter creates an Adapter over b.
func NewAdapter(b Backend) *Adapter {
	return &Adapter{backend: b}
}

// Get returns the value under ns/key, or def if the key has never been written.
func (a *Adapter) Get(ns Namespace, key, def string) (string, error) {
	v, ok, err := a.backend.GetPref(string(ns), key)
	if err != nil {
		return "", fmt.Errorf("reading %s/%s: %w", ns, key, err)
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// Set writes value under ns/key. The write is durable and visible to the
// next Get once Set returns.
func (a *Adapter) Set(ns Namespace, key, value string) error {
	if err := a.backend.SetPref(string(ns), key, value); err != nil {
		return fmt.Errorf("writing %s/%s: %w", ns, key, err)
	}
	return nil
}

// Exists reports whether ns/key has ever been written.
func (a *Adapter) Exists(ns Namespace, key string) (bool, error) {
	ok, err := a.backend.HasPref(string(ns), key)
	if err != nil {
		return false, fmt.Errorf("checking %s/%s: %w", ns, key, err)
	}
	return ok, nil
}
