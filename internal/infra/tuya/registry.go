package tuya

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"tuyactl/internal/domain"
)

// Registry caches the account's device inventory so callers can resolve
// devices by name or id without hitting the cloud on every lookup.
type Registry struct {
	client *Client
	logger *slog.Logger

	mu      sync.RWMutex
	devices []domain.Device

	byID   map[string]*domain.Device
	byName map[string]*domain.Device
}

func NewRegistry(client *Client, logger *slog.Logger) *Registry {
	return &Registry{
		client: client,
		logger: logger,
		byID:   make(map[string]*domain.Device),
		byName: make(map[string]*domain.Device),
	}
}

func (r *Registry) Sync(ctx context.Context) error {
	r.logger.Info("syncing devices from Tuya")

	devices, err := r.client.GetDevices(ctx)
	if err != nil {
		return fmt.Errorf("fetching devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = devices

	r.byID = make(map[string]*domain.Device)
	r.byName = make(map[string]*domain.Device)
	for i := range r.devices {
		r.byID[r.devices[i].ID] = &r.devices[i]
		r.byName[strings.ToLower(r.devices[i].Name)] = &r.devices[i]
	}

	r.logger.Info("sync complete", "devices", len(r.devices))

	return nil
}

func (r *Registry) GetDevices() []domain.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.Device, len(r.devices))
	copy(result, r.devices)
	return result
}

// FindDevice resolves a device by id, exact name, or name fragment.
func (r *Registry) FindDevice(nameOrID string) (*domain.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.byID[nameOrID]; ok {
		return d, true
	}

	key := strings.ToLower(strings.TrimSpace(nameOrID))
	if d, ok := r.byName[key]; ok {
		return d, true
	}

	for i := range r.devices {
		if strings.Contains(strings.ToLower(r.devices[i].Name), key) {
			return &r.devices[i], true
		}
	}

	return nil, false
}

func (r *Registry) Summary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sb strings.Builder

	sb.WriteString("Devices:\n")
	for _, d := range r.devices {
		status := "offline"
		if d.Online {
			status = "online"
		}
		sb.WriteString(fmt.Sprintf("- %s  id=%s type=%s %s\n", d.Name, d.ID, d.Type, status))
	}

	return sb.String()
}
