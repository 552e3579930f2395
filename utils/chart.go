package utils

import (
	"time"

	"github.com/NimbleMarkets/ntcharts/linechart/timeserieslinechart"
)

// TimePoint is one sample on a time-series chart.
type TimePoint = timeserieslinechart.TimePoint

// Chart wraps the braille time-series line chart used across the TUIs.
type Chart = timeserieslinechart.Model

// NewChart creates a time-series chart of the given cell dimensions.
func NewChart(width, height int) Chart {
	return timeserieslinechart.New(width, height)
}

// SamplePoint builds a TimePoint from an instant and a value.
func SamplePoint(t time.Time, value float64) TimePoint {
	return TimePoint{Time: t, Value: value}
}
