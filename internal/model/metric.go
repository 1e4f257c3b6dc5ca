package model

import (
	"errors"
	"fmt"
)

type MetricType string

const (
	HeartRate            MetricType = "heart_rate"
	HeartRateVariability MetricType = "heart_rate_variability_sdnn"
	StepCount            MetricType = "step_count"
)

var ErrUnknownMetric = errors.New("unknown metric type")

var metricTypes = []MetricType{HeartRate, HeartRateVariability, StepCount}

// MetricTypes lists every metric the application reads.
func MetricTypes() []MetricType {
	out := make([]MetricType, len(metricTypes))
	copy(out, metricTypes)
	return out
}

func ParseMetricType(s string) (MetricType, error) {
	for _, t := range metricTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// DisplayUnit is the unit a metric is converted to before it reaches the view.
func (t MetricType) DisplayUnit() Unit {
	switch t {
	case HeartRate:
		return UnitCountPerMinute
	case HeartRateVariability:
		return UnitMillisecond
	case StepCount:
		return UnitCount
	default:
		return ""
	}
}
