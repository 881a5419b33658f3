// Package lmt reads the Limit Ad Tracking flag devices send in device.lmt.
package lmt

import (
	"github.com/prebid/openrtb/v20/openrtb2"
)

const restricted int8 = 1

// Policy is the device's tracking preference. A device that sends no flag is unrestricted.
type Policy struct {
	signal *int8
}

func ReadFromDevice(device *openrtb2.Device) Policy {
	if device == nil {
		return Policy{}
	}
	return Policy{signal: device.Lmt}
}

// Provided is true when the device sent a flag at all.
func (p Policy) Provided() bool {
	return p.signal != nil
}

// ShouldEnforce is true when the device asked not to be tracked.
func (p Policy) ShouldEnforce() bool {
	return p.signal != nil && *p.signal == restricted
}
