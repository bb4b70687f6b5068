package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Device bundles a hal device and its queue, opened on the best available
// adapter. It exists so tools and tests can bring up a GPU without going
// through a windowing layer.
type Device struct {
	instance    hal.Instance
	device      hal.Device
	queue       hal.Queue
	adapterName string
}

// OpenDevice opens a compute-capable device on the Vulkan backend.
// Discrete adapters are preferred over integrated ones.
func OpenDevice() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("gpu: vulkan backend not registered")
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: no adapters found")
	}

	selected := adapters[0]
	for _, a := range adapters {
		if a.Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			selected = a
			break
		}
		if a.Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = a
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open adapter %q: %w", selected.Info.Name, err)
	}

	slogger().Info("gpu: device opened",
		"adapter", selected.Info.Name,
		"type", selected.Info.DeviceType)

	return &Device{
		instance:    instance,
		device:      openDev.Device,
		queue:       openDev.Queue,
		adapterName: selected.Info.Name,
	}, nil
}

// Hal returns the underlying hal device.
func (d *Device) Hal() hal.Device { return d.device }

// Queue returns the device's submission queue.
func (d *Device) Queue() hal.Queue { return d.queue }

// AdapterName returns the name of the adapter the device was opened on.
func (d *Device) AdapterName() string { return d.adapterName }

// Close releases the device and its instance. The Device must not be used
// afterwards.
func (d *Device) Close() {
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
		d.queue = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}
