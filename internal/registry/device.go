package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/doorcrew/scanner-server-go/internal/errors"
	"github.com/doorcrew/scanner-server-go/internal/model"
)

// DeviceRegistry tracks scanner device identity across pairings. Devices are
// upserted on claim and touched on every successful scan.
type DeviceRegistry interface {
	Upsert(ctx context.Context, deviceID, deviceName, platform string, now time.Time) (*model.ScannerDevice, error)
	Rename(ctx context.Context, deviceID, newName string, now time.Time) (*model.ScannerDevice, error)
	Touch(ctx context.Context, deviceID string, now time.Time) error
	FindByID(ctx context.Context, deviceID string) (*model.ScannerDevice, error)
	List(ctx context.Context) ([]model.ScannerDevice, error)
}

type memoryDeviceRegistry struct {
	mu   sync.RWMutex
	byID map[string]*model.ScannerDevice
}

func NewDeviceRegistry() DeviceRegistry {
	return &memoryDeviceRegistry{
		byID: make(map[string]*model.ScannerDevice),
	}
}

func (r *memoryDeviceRegistry) Upsert(ctx context.Context, deviceID, deviceName, platform string, now time.Time) (*model.ScannerDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byID[deviceID]
	if !ok {
		d = &model.ScannerDevice{DeviceID: deviceID}
		r.byID[deviceID] = d
	}
	if deviceName != "" {
		d.DeviceName = deviceName
	}
	if platform != "" {
		d.Platform = platform
	}
	d.LastActiveAt = now

	clone := *d
	return &clone, nil
}

func (r *memoryDeviceRegistry) Rename(ctx context.Context, deviceID, newName string, now time.Time) (*model.ScannerDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byID[deviceID]
	if !ok {
		return nil, apperrors.DeviceNotFound()
	}
	d.DeviceName = newName
	d.LastActiveAt = now

	clone := *d
	return &clone, nil
}

func (r *memoryDeviceRegistry) Touch(ctx context.Context, deviceID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.byID[deviceID]; ok {
		d.LastActiveAt = now
	}
	return nil
}

func (r *memoryDeviceRegistry) FindByID(ctx context.Context, deviceID string) (*model.ScannerDevice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byID[deviceID]
	if !ok {
		return nil, nil
	}
	clone := *d
	return &clone, nil
}

func (r *memoryDeviceRegistry) List(ctx context.Context) ([]model.ScannerDevice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.ScannerDevice, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out, nil
}
