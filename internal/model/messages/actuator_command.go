package messages

import "fmt"

type CommandType string

const (
	CmdLight      CommandType = "LIGHT"
	CmdPump       CommandType = "PUMP"
	CmdFanIntake  CommandType = "FAN_INTAKE"
	CmdFanExhaust CommandType = "FAN_EXHAUST"
	CmdHumidifier CommandType = "HUMID"
	CmdSetFanPWM  CommandType = "set_fan_pwm"
)

// ActuatorCommand is the wire shape understood by the device firmware.
type ActuatorCommand struct {
	Command CommandType `json:"command"`
	ID      *int        `json:"id,omitempty"`
	State   *bool       `json:"state,omitempty"`
	Value   *int        `json:"value,omitempty"`
}

func Switch(cmd CommandType, on bool) ActuatorCommand {
	return ActuatorCommand{Command: cmd, State: &on}
}

func Pump(group int, on bool) ActuatorCommand {
	return ActuatorCommand{Command: CmdPump, ID: &group, State: &on}
}

func FanPWM(value int) ActuatorCommand {
	return ActuatorCommand{Command: CmdSetFanPWM, Value: &value}
}

// Validate checks that the command carries the fields its type needs.
func (c ActuatorCommand) Validate() error {
	switch c.Command {
	case CmdLight, CmdFanIntake, CmdFanExhaust, CmdHumidifier:
		if c.State == nil {
			return fmt.Errorf("%s: missing state", c.Command)
		}
	case CmdPump:
		if c.State == nil {
			return fmt.Errorf("PUMP: missing state")
		}
		if c.ID == nil || *c.ID < 1 || *c.ID > 2 {
			return fmt.Errorf("PUMP: id must be 1 or 2")
		}
	case CmdSetFanPWM:
		if c.Value == nil || *c.Value < 0 || *c.Value > 100 {
			return fmt.Errorf("set_fan_pwm: value must be 0-100")
		}
	default:
		return fmt.Errorf("unknown command %q", c.Command)
	}
	return nil
}

func (c ActuatorCommand) String() string {
	s := string(c.Command)
	if c.ID != nil {
		s += fmt.Sprintf("#%d", *c.ID)
	}
	if c.State != nil {
		if *c.State {
			s += "=on"
		} else {
			s += "=off"
		}
	}
	if c.Value != nil {
		s += fmt.Sprintf("=%d", *c.Value)
	}
	return s
}
