package sizeconverter

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

type number interface {
	constraints.Float | constraints.Integer
}

var units = []string{"B", "KB", "MB", "GB"}

func HumanReadableSizeInMB[N number](size N) string {
	return format(float64(size)/1024/1024, "MB")
}

// HumanReadableSize picks the largest unit that keeps the value at or above 1.
func HumanReadableSize[N number](size N) string {
	v := float64(size)
	unit := 0
	for v >= 1024 && unit < len(units)-1 {
		v /= 1024
		unit++
	}
	return format(v, units[unit])
}

func format(v float64, unit string) string {
	if math.Trunc(v) == v {
		return fmt.Sprintf("%.0f %s", v, unit)
	}
	return fmt.Sprintf("%.2f %s", v, unit)
}
