package model

import (
	"errors"
	"fmt"
)

type Unit string

const (
	UnitCount          Unit = "count"
	UnitCountPerMinute Unit = "count/min"
	UnitCountPerSecond Unit = "count/s"
	UnitSecond         Unit = "s"
	UnitMillisecond    Unit = "ms"
)

var ErrIncompatibleUnit = errors.New("incompatible unit")

type dimension int

const (
	dimUnknown dimension = iota
	dimScalar
	dimFrequency
	dimTime
)

// factor converts a value in the unit to the base unit of its dimension
// (count, count/min, millisecond).
var units = map[Unit]struct {
	dim    dimension
	factor float64
}{
	UnitCount:          {dimScalar, 1},
	UnitCountPerMinute: {dimFrequency, 1},
	UnitCountPerSecond: {dimFrequency, 60},
	UnitSecond:         {dimTime, 1000},
	UnitMillisecond:    {dimTime, 1},
}

func (u Unit) Valid() bool {
	_, ok := units[u]
	return ok
}

type Quantity struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// ValueIn converts the quantity to target.
func (q Quantity) ValueIn(target Unit) (float64, error) {
	if q.Unit == target {
		return q.Value, nil
	}

	from, ok := units[q.Unit]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrIncompatibleUnit, q.Unit)
	}
	to, ok := units[target]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrIncompatibleUnit, target)
	}
	if from.dim != to.dim {
		return 0, fmt.Errorf("%w: %s to %s", ErrIncompatibleUnit, q.Unit, target)
	}

	return q.Value * from.factor / to.factor, nil
}
