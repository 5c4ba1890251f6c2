package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"tuyactl/internal/domain"
)

// Controller resolves device references and turns high-level requests into
// Tuya commands.
type Controller struct {
	iot      DeviceController
	registry DeviceRegistry
	logger   *slog.Logger
}

func NewController(iot DeviceController, registry DeviceRegistry, logger *slog.Logger) *Controller {
	return &Controller{
		iot:      iot,
		registry: registry,
		logger:   logger,
	}
}

// Devices syncs the registry and returns the device inventory.
func (c *Controller) Devices(ctx context.Context) ([]domain.Device, error) {
	if err := c.registry.Sync(ctx); err != nil {
		return nil, fmt.Errorf("syncing registry: %w", err)
	}
	return c.registry.GetDevices(), nil
}

// Status returns the data points of a device referenced by name or id.
func (c *Controller) Status(ctx context.Context, target string) ([]domain.Status, error) {
	device, err := c.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	return c.iot.GetDeviceStatus(ctx, device.ID)
}

// Functions returns the command codes a device accepts.
func (c *Controller) Functions(ctx context.Context, target string) ([]domain.Function, error) {
	device, err := c.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	return c.iot.GetDeviceFunctions(ctx, device.ID)
}

// Switch toggles one gang of a multi-gang switch, or every gang when gang
// is zero. The gang set is derived from the device's live status.
func (c *Controller) Switch(ctx context.Context, target string, gang int, on bool) error {
	device, err := c.resolve(ctx, target)
	if err != nil {
		return err
	}

	codes, err := c.switchCodes(ctx, device.ID)
	if err != nil {
		return err
	}

	var cmds []domain.Command
	if gang == 0 {
		for _, code := range codes {
			cmds = append(cmds, domain.Command{Code: code, Value: on})
		}
	} else {
		code := domain.GangCode(gang)
		found := false
		for _, have := range codes {
			if have == code {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("device %s has no gang %d (codes: %s)", device.ID, gang, strings.Join(codes, ", "))
		}
		cmds = append(cmds, domain.Command{Code: code, Value: on})
	}

	c.logger.Info("switching device",
		"device", device.ID,
		"gang", gang,
		"on", on,
	)

	return c.iot.SendCommands(ctx, device.ID, cmds)
}

// Send issues a raw command to a device.
func (c *Controller) Send(ctx context.Context, target string, cmd domain.Command) error {
	device, err := c.resolve(ctx, target)
	if err != nil {
		return err
	}

	c.logger.Info("sending command",
		"device", device.ID,
		"code", cmd.Code,
		"value", cmd.Value,
	)

	return c.iot.SendCommands(ctx, device.ID, []domain.Command{cmd})
}

// resolve maps a name or id onto a known device, syncing the registry on a
// cache miss.
func (c *Controller) resolve(ctx context.Context, target string) (*domain.Device, error) {
	if target == "" {
		return nil, fmt.Errorf("no device specified")
	}

	if device, ok := c.registry.FindDevice(target); ok {
		return device, nil
	}

	if err := c.registry.Sync(ctx); err != nil {
		return nil, fmt.Errorf("syncing registry: %w", err)
	}

	device, ok := c.registry.FindDevice(target)
	if !ok {
		return nil, fmt.Errorf("device not found: %s", target)
	}
	return device, nil
}

// switchCodes lists the boolean switch_* codes a device currently reports.
func (c *Controller) switchCodes(ctx context.Context, deviceID string) ([]string, error) {
	status, err := c.iot.GetDeviceStatus(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("reading switch layout: %w", err)
	}

	var codes []string
	for _, s := range status {
		if _, ok := s.Value.(bool); !ok {
			continue
		}
		if strings.HasPrefix(s.Code, "switch") {
			codes = append(codes, s.Code)
		}
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("device %s reports no switch codes", deviceID)
	}

	sort.Strings(codes)
	return codes, nil
}
