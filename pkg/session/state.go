package session

type State int

const (
	Idle State = iota
	DeviceSelected
	Acquiring
	Exporting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DeviceSelected:
		return "device-selected"
	case Acquiring:
		return "acquiring"
	case Exporting:
		return "exporting"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
