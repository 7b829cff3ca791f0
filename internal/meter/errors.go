package meter

import "codeberg.org/mutker/carbonwise/internal/errors"

const (
	ErrAlreadyStarted  = errors.ErrorCode("meter_already_started")
	ErrNotStarted      = errors.ErrorCode("meter_not_started")
	ErrNoFinalData     = errors.ErrorCode("meter_no_final_data")
	ErrStart           = errors.ErrMeterStart
	ErrStop            = errors.ErrMeterStop
	ErrSourceRead      = errors.ErrMeterSource
	ErrSourceUnusable  = errors.ErrorCode("meter_source_unusable")
	ErrNVMLInit        = errors.ErrorCode("meter_nvml_init_failed")
	ErrNVMLDeviceCount = errors.ErrorCode("meter_nvml_device_count_failed")
	ErrNVMLDevice      = errors.ErrorCode("meter_nvml_device_failed")
	ErrNVMLEnergy      = errors.ErrorCode("meter_nvml_energy_failed")
)
