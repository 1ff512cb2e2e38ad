package reconstruction

import (
	"math"
	"time"
)

// Utilization returns active/(active+idle) as a percentage, 0 when both are 0.
func Utilization(activeMinutes, idleMinutes float64) float64 {
	total := activeMinutes + idleMinutes
	if total <= 0 {
		return 0
	}
	return clampPercent(activeMinutes / total * 100)
}

// Occupancy returns occupied time as a percentage of the window, clamped to [0,100].
func Occupancy(occupiedMinutes, windowMinutes float64) float64 {
	if windowMinutes <= 0 {
		return 0
	}
	return clampPercent(occupiedMinutes / windowMinutes * 100)
}

// PerHour returns units per hour of the given minutes, 0 when minutes is 0.
func PerHour(units int64, minutes float64) float64 {
	if minutes <= 0 {
		return 0
	}
	return float64(units) / minutes * 60
}

// WindowMinutes returns the minutes between start and end, 0 if end is not after start.
func WindowMinutes(start, end time.Time) float64 {
	return minutesBetween(start, end)
}

// Round2 rounds to two decimals, half away from zero.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func clampPercent(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
