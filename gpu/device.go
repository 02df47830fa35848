// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// FromDeviceProvider narrows a typed gpucontext host to HAL handles. Hosts
// expose the HAL accessors either on the provider itself or on the device
// handle it returns; both are probed, provider first.
//
// The package never opens an adapter itself: the returned handles stay
// owned by the host, and [Dispatcher.Close] leaves them alive.
func FromDeviceProvider(provider gpucontext.DeviceProvider) (hal.Device, hal.Queue, error) {
	if provider == nil {
		return nil, nil, errors.New("gpu: nil device provider")
	}
	if device, queue, err := FromProvider(provider); err == nil {
		return device, queue, nil
	}
	return FromProvider(provider.Device())
}

// FromProvider extracts the HAL device and queue from a host-owned device
// provider. The provider must expose HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue.
func FromProvider(provider any) (hal.Device, hal.Queue, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, nil, fmt.Errorf("gpu: provider %T does not expose HAL types", provider)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}
	return device, queue, nil
}
