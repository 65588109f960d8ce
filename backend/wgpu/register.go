//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/StanleySweet/gifbolt-go/backend"
)

func init() {
	backend.Register(backend.BackendWGPU, backend.PriorityGPU, func(width, height int) (backend.Surface, error) {
		return NewSurface(width, height)
	}, available)
}

// available reports whether a GPU device can be opened. The first probe
// opens the shared device, so a true result means surface creation will
// not fail on device acquisition.
func available() bool {
	_, err := acquireDevice()
	return err == nil
}

// sharedDevice is the process-wide Vulkan device backing all wgpu
// surfaces. Opened lazily on first use and kept for the life of the
// process: destroying a Vulkan device while other GPU users coexist is a
// known driver hazard, and surfaces are cheap relative to a device.
type sharedDevice struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  string
}

var (
	deviceMu   sync.Mutex
	shared     *sharedDevice
	sharedErr  error
	deviceOnce bool
)

// acquireDevice returns the shared device, opening it on first call.
// Both the device and a failure to open one are remembered; a machine
// does not grow a GPU mid-process.
func acquireDevice() (*sharedDevice, error) {
	deviceMu.Lock()
	defer deviceMu.Unlock()

	if !deviceOnce {
		deviceOnce = true
		shared, sharedErr = openDevice()
		if sharedErr != nil {
			backend.Logger().Warn("wgpu: GPU device unavailable", "error", sharedErr)
		} else {
			backend.Logger().Info("wgpu: GPU device opened", "adapter", shared.adapter)
		}
	}
	return shared, sharedErr
}

// openDevice creates a standalone Vulkan device for texture uploads.
func openDevice() (*sharedDevice, error) {
	hb, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, errors.New("vulkan backend not available")
	}

	instance, err := hb.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, errors.New("no GPU adapters found")
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	return &sharedDevice{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		adapter:  selected.Info.Name,
	}, nil
}
