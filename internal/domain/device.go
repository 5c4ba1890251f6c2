package domain

type DeviceType string

const (
	DeviceTypeLight      DeviceType = "light"
	DeviceTypePlug       DeviceType = "plug"
	DeviceTypeSwitch     DeviceType = "switch"
	DeviceTypeThermostat DeviceType = "thermostat"
	DeviceTypeSensor     DeviceType = "sensor"
	DeviceTypeOther      DeviceType = "other"
)

type Device struct {
	ID          string
	Name        string
	Type        DeviceType
	Category    string
	ProductName string
	Online      bool
}

// Status is one data point reported by a device, e.g. {switch_1, true}.
type Status struct {
	Code  string
	Value any
}

// Function describes one command code a device accepts. Values carries the
// vendor's raw JSON describing the accepted range.
type Function struct {
	Code   string
	Type   string
	Values string
}
