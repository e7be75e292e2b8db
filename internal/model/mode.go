package model

// Mode gates whether automatic decisions reach the actuators.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// ParseMode normalizes a mode string; unknown values fall back to auto.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeAuto:
		return ModeAuto, true
	case ModeManual:
		return ModeManual, true
	default:
		return ModeAuto, false
	}
}
