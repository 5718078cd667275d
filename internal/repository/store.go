package repository

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by stores when a key has no value.
var ErrNotFound = errors.New("repository: key not found")

// Store persists small string values scoped to a device (a browser or the
// local terminal). Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, device, key string) (string, error)
	Put(ctx context.Context, device, key, value string) error
	Delete(ctx context.Context, device, key string) error
}

// KeyValue is a Store bound to one device.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// DeviceState binds a Store to a single device.
type DeviceState struct {
	store  Store
	device string
}

// ForDevice returns the KeyValue view of store for device.
func ForDevice(store Store, device string) (*DeviceState, error) {
	if store == nil {
		return nil, errors.New("repository: store must not be nil")
	}
	device = strings.TrimSpace(device)
	if device == "" {
		return nil, errors.New("repository: device must not be empty")
	}
	return &DeviceState{store: store, device: device}, nil
}

func (d *DeviceState) Device() string { return d.device }

func (d *DeviceState) Get(ctx context.Context, key string) (string, error) {
	return d.store.Get(ctx, d.device, key)
}

func (d *DeviceState) Set(ctx context.Context, key, value string) error {
	return d.store.Put(ctx, d.device, key, value)
}

func (d *DeviceState) Delete(ctx context.Context, key string) error {
	return d.store.Delete(ctx, d.device, key)
}
