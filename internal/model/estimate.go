package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type TimeUnit string

const (
	TimeUnitDay  TimeUnit = "day"
	TimeUnitWeek TimeUnit = "week"
)

// TimeEstimate is a repair duration quoted to the customer.
type TimeEstimate struct {
	Value int      `json:"value" bson:"value"`
	Unit  TimeUnit `json:"unit" bson:"unit"`
}

// ParseTimeEstimate accepts "3 days", "1 week", "2 weeks" or a bare number of days.
func ParseTimeEstimate(raw string) (TimeEstimate, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	if len(fields) == 0 || len(fields) > 2 {
		return TimeEstimate{}, fmt.Errorf("invalid time estimate %q", raw)
	}

	value, err := strconv.Atoi(fields[0])
	if err != nil || value <= 0 {
		return TimeEstimate{}, fmt.Errorf("invalid time estimate %q: expected a positive number", raw)
	}
	if len(fields) == 1 {
		return TimeEstimate{Value: value, Unit: TimeUnitDay}, nil
	}

	switch fields[1] {
	case "day", "days", "d":
		return TimeEstimate{Value: value, Unit: TimeUnitDay}, nil
	case "week", "weeks", "w":
		return TimeEstimate{Value: value, Unit: TimeUnitWeek}, nil
	default:
		return TimeEstimate{}, fmt.Errorf("invalid time estimate %q: unknown unit %q", raw, fields[1])
	}
}

// Days converts the estimate to whole days.
func (e TimeEstimate) Days() int {
	if e.Unit == TimeUnitWeek {
		return e.Value * 7
	}
	return e.Value
}

// AddTo returns the moment the estimate runs out when counted from start.
func (e TimeEstimate) AddTo(start time.Time) time.Time {
	return start.AddDate(0, 0, e.Days())
}

func (e TimeEstimate) String() string {
	unit := string(e.Unit)
	if e.Value != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s", e.Value, unit)
}
