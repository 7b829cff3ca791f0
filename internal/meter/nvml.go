package meter

import (
	"codeberg.org/mutker/carbonwise/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlController abstracts NVML operations for testing
type nvmlController interface {
	Initialize() error
	Shutdown() error
	GetDeviceCount() (int, error)
	GetTotalEnergy(index int) (uint64, error)
}

type nvmlWrapper struct {
	initialized bool
	devices     map[int]nvml.Device
}

func (w *nvmlWrapper) Initialize() error {
	errFactory := errors.New()
	if w.initialized {
		return nil
	}

	ret := nvml.Init()
	if !isNVMLSuccess(ret) {
		return errFactory.Wrap(ErrNVMLInit, newNVMLError(ret))
	}

	w.initialized = true
	w.devices = make(map[int]nvml.Device)

	return nil
}

func (w *nvmlWrapper) Shutdown() error {
	errFactory := errors.New()
	if !w.initialized {
		return nil
	}

	ret := nvml.Shutdown()
	if !isNVMLSuccess(ret) {
		return errFactory.Wrap(ErrSourceUnusable, newNVMLError(ret))
	}

	w.initialized = false
	w.devices = nil

	return nil
}

func (w *nvmlWrapper) GetDeviceCount() (int, error) {
	errFactory := errors.New()
	if !w.initialized {
		return 0, errFactory.New(ErrNotStarted)
	}

	count, ret := nvml.DeviceGetCount()
	if !isNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrNVMLDeviceCount, newNVMLError(ret))
	}

	return count, nil
}

// GetTotalEnergy returns the energy consumed by the device since the driver
// was loaded, in millijoules.
func (w *nvmlWrapper) GetTotalEnergy(index int) (uint64, error) {
	errFactory := errors.New()
	if !w.initialized {
		return 0, errFactory.New(ErrNotStarted)
	}

	device, ok := w.devices[index]
	if !ok {
		var ret nvml.Return
		device, ret = nvml.DeviceGetHandleByIndex(index)
		if !isNVMLSuccess(ret) {
			return 0, errFactory.Wrap(ErrNVMLDevice, newNVMLError(ret)).WithData(index)
		}
		w.devices[index] = device
	}

	mj, ret := device.GetTotalEnergyConsumption()
	if !isNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrNVMLEnergy, newNVMLError(ret))
	}

	return mj, nil
}

// nvmlSource sums the energy counters of every visible GPU.
type nvmlSource struct {
	ctrl    nvmlController
	devices []int
}

// NewNVMLSource initializes NVML and returns a source covering all GPUs
// that report an energy counter. It fails when NVML is unavailable or no
// GPU supports energy readings.
func NewNVMLSource() (Source, error) {
	return newNVMLSource(&nvmlWrapper{})
}

func newNVMLSource(ctrl nvmlController) (Source, error) {
	errFactory := errors.New()

	if err := ctrl.Initialize(); err != nil {
		return nil, err
	}

	count, err := ctrl.GetDeviceCount()
	if err != nil {
		_ = ctrl.Shutdown()
		return nil, err
	}

	src := &nvmlSource{ctrl: ctrl}
	for i := 0; i < count; i++ {
		if _, err := ctrl.GetTotalEnergy(i); err != nil {
			continue
		}
		src.devices = append(src.devices, i)
	}

	if len(src.devices) == 0 {
		_ = ctrl.Shutdown()
		return nil, errFactory.WithMessage(ErrSourceUnusable, "no GPU reports energy consumption")
	}

	return src, nil
}

func (*nvmlSource) Name() string {
	return "nvml"
}

func (s *nvmlSource) Read() (float64, error) {
	var total uint64
	for _, i := range s.devices {
		mj, err := s.ctrl.GetTotalEnergy(i)
		if err != nil {
			return 0, errors.New().Wrap(ErrSourceRead, err).WithData(s.Name())
		}
		total += mj
	}

	return float64(total) / 1000, nil
}

func (*nvmlSource) MaxRange() float64 {
	return 0
}

func (s *nvmlSource) Close() error {
	return s.ctrl.Shutdown()
}

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

func isNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
