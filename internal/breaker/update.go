package breaker

import (
	"errors"
	"math"
)

var errInvalidErrorThreshold = errors.New("breaker: ErrorThresholdPercentage must be within [0, 100]")

// UpdateSettings applies a partial settings change, validating all fields
// before applying any of them (all-or-nothing), matching the teacher
// library's UpdateSettings convention. Supports the PropertiesStrategy hot
// reload path described in spec.md §9.
func (cb *CircuitBreaker) UpdateSettings(update SettingsUpdate) error {
	if update.ErrorThresholdPercentage != nil {
		v := *update.ErrorThresholdPercentage
		if v < 0 || v > 100 {
			return errInvalidErrorThreshold
		}
	}

	if update.Enabled != nil {
		cb.enabled.Store(*update.Enabled)
	}
	if update.RequestVolumeThreshold != nil {
		cb.requestVolumeThreshold.Store(*update.RequestVolumeThreshold)
	}
	if update.ErrorThresholdPercentage != nil {
		cb.errorThresholdPct.Store(math.Float64bits(*update.ErrorThresholdPercentage))
	}
	if update.SleepWindow != nil {
		cb.sleepWindowNanos.Store(int64(*update.SleepWindow))
	}
	if update.ForceOpen != nil {
		cb.forceOpen.Store(*update.ForceOpen)
	}
	if update.ForceClosed != nil {
		cb.forceClosed.Store(*update.ForceClosed)
	}
	return nil
}
