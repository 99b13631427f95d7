// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// halProvider is implemented by device providers that expose their HAL
// objects, such as the gogpu application window.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// Device is a HAL device and queue with the metadata the compositor
// needs to pick formats and log the adapter.
type Device struct {
	HAL     hal.Device
	Queue   hal.Queue
	Format  gputypes.TextureFormat
	Adapter gpucontext.AdapterInfo

	instance hal.Instance
	owned    bool
}

// FromProvider borrows the device of a host application. Close does not
// destroy a borrowed device.
func FromProvider(p gpucontext.DeviceProvider) (*Device, error) {
	hp, ok := p.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: HalDevice is %T", ErrNoHAL, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: HalQueue is %T", ErrNoHAL, hp.HalQueue())
	}
	return &Device{
		HAL:     device,
		Queue:   queue,
		Format:  p.SurfaceFormat(),
		Adapter: p.AdapterInfo(),
	}, nil
}

// Open creates an instance of backend and opens its first adapter with
// default limits. The returned device is owned and released by Close.
func Open(backend hal.Backend) (*Device, error) {
	instance, err := backend.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("halgpu: create instance: %w", translate(err))
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	exposed := adapters[0]
	open, err := exposed.Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("halgpu: open %s: %w", exposed.Info.Name, translate(err))
	}
	return &Device{
		HAL:      open.Device,
		Queue:    open.Queue,
		Format:   gputypes.TextureFormatBGRA8Unorm,
		Adapter:  gpucontext.AdapterInfo{Name: exposed.Info.Name, Type: adapterType(exposed.Info.DeviceType)},
		instance: instance,
		owned:    true,
	}, nil
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	}
	return gpucontext.AdapterTypeUnknown
}

// NewTimeline creates a timeline semaphore on the device.
func (d *Device) NewTimeline() (*Timeline, error) {
	return NewTimeline(d.HAL)
}

// Close releases an owned device and its instance.
func (d *Device) Close() {
	if !d.owned {
		return
	}
	d.owned = false
	d.HAL.Destroy()
	d.instance.Destroy()
}
