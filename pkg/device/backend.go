package device

import (
	"errors"
	"image"
)

var (
	ErrManagerClosed  = errors.New("scanner manager is not open")
	ErrNoDevice       = errors.New("no scanner selected")
	ErrUnknownDevice  = errors.New("unknown scanner")
	ErrBusy           = errors.New("an acquisition is already in progress")
	ErrAcquireTimeout = errors.New("the scanner did not complete the acquisition in time")
)

// State is the bitmask a backend reports on state transitions.
type State uint8

const (
	StateManagerOpen State = 1 << iota
	StateSourceOpen
	StateSourceEnabled
)

func (s State) Has(flag State) bool {
	return s&flag != 0
}

// Handler receives the notifications a Backend raises. Backends may call
// it from any goroutine.
type Handler interface {
	AcquireCompleted()
	AcquireFailed(err error)
	StateChanged(state State)
}

// Backend is the capability set of a scanning backend.
type Backend interface {
	// Open connects to the backend (the "data source manager").
	Open() error
	// Sources lists the devices a user can choose from.
	Sources() ([]string, error)
	// Select binds a device. Any previously bound device must have been
	// closed with CloseSource.
	Select(name string) error
	CloseSource() error
	// Acquire starts one scan pass and returns once the request has been
	// accepted. Completion is signalled through the Handler.
	Acquire() error
	// ImageCount and Image expose the images of the last acquisition.
	ImageCount() int
	Image(index int) (image.Image, error)
	SetHandler(h Handler)
}
