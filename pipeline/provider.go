// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"errors"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// ErrNoHALDevice is returned when a device provider does not expose a hal
// device.
var ErrNoHALDevice = errors.New("pipeline: device provider does not expose a hal device")

// halProvider is implemented by providers that can hand out their hal
// objects.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// HALFromProvider extracts the hal device and queue from a device provider.
func HALFromProvider(provider gpucontext.DeviceProvider) (hal.Device, hal.Queue, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, nil, ErrNoHALDevice
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, ErrNoHALDevice
	}
	queue, _ := hp.HalQueue().(hal.Queue)
	return device, queue, nil
}
