package application

import (
	"context"

	"tuyactl/internal/domain"
)

type DeviceController interface {
	GetDeviceStatus(ctx context.Context, deviceID string) ([]domain.Status, error)
	GetDeviceFunctions(ctx context.Context, deviceID string) ([]domain.Function, error)
	SendCommands(ctx context.Context, deviceID string, cmds []domain.Command) error
}

type DeviceRegistry interface {
	Sync(ctx context.Context) error
	GetDevices() []domain.Device
	FindDevice(nameOrID string) (*domain.Device, bool)
	Summary() string
}
