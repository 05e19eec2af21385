package device

import "image"

// Event is emitted by the Manager on its Events channel.
type Event interface {
	isEvent()
}

type ImageAcquired struct {
	Device string
	Image  image.Image
}

type AcquisitionFailed struct {
	Device string
	Reason error
}

type StateChanged struct {
	State   State
	Enabled bool
}

func (ImageAcquired) isEvent() {}
func (AcquisitionFailed) isEvent() {}
func (StateChanged) isEvent() {}
