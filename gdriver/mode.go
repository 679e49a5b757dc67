package gdriver

import "fmt"

// Mode selects the chain topology a [*Driver] synchronizes.
type Mode uint8

const (
	ModeInvalid Mode = iota

	ModeSolochain
	ModeParachain
)

func (m Mode) String() string {
	switch m {
	case ModeSolochain:
		return "solochain"
	case ModeParachain:
		return "parachain"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode is the inverse of [Mode.String].
func ParseMode(s string) (Mode, error) {
	switch s {
	case "solochain":
		return ModeSolochain, nil
	case "parachain":
		return ModeParachain, nil
	default:
		return ModeInvalid, fmt.Errorf("unknown mode %q (must be solochain or parachain)", s)
	}
}
