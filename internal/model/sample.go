package model

import (
	"time"

	"github.com/google/uuid"
)

// Sample is one timestamped measurement owned by the health-data service.
type Sample struct {
	ID       string     `json:"id"`
	Type     MetricType `json:"type"`
	Quantity Quantity   `json:"quantity"`
	Start    time.Time  `json:"start"`
	End      time.Time  `json:"end"`
	Source   string     `json:"source,omitempty"`
}

func NewSample(t MetricType, q Quantity, start, end time.Time, source string) Sample {
	return Sample{
		ID:       uuid.New().String(),
		Type:     t,
		Quantity: q,
		Start:    start.UTC(),
		End:      end.UTC(),
		Source:   source,
	}
}

// Reading is a converted scalar ready for display.
type Reading struct {
	Type  MetricType `json:"type"`
	Value float64    `json:"value"`
	Unit  Unit       `json:"unit"`
	At    time.Time  `json:"at"`
}
