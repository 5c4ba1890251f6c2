package domain

import "fmt"

// Command is a single Tuya instruction: a function code and its value.
type Command struct {
	Code  string
	Value any
}

func SwitchOn(code string) Command  { return Command{Code: code, Value: true} }
func SwitchOff(code string) Command { return Command{Code: code, Value: false} }

// GangCode returns the switch code for one gang of a multi-gang switch.
// Gangs are numbered from 1.
func GangCode(gang int) string {
	return fmt.Sprintf("switch_%d", gang)
}
