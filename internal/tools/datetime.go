package tools

import (
	"context"
	"encoding/json"
	"time"
)

// Datetime reports the current local date and time.
type Datetime struct {
	now func() time.Time
}

// NewDatetime returns a Datetime tool. A nil clock uses time.Now.
func NewDatetime(now func() time.Time) Datetime {
	if now == nil {
		now = time.Now
	}
	return Datetime{now: now}
}

func (Datetime) Name() string { return "get_datetime" }

func (Datetime) Description() string {
	return "Get the current date and time in ISO 8601 format."
}

func (Datetime) InputSchema() Schema {
	return Schema{}
}

// DatetimeResult is the get_datetime output.
type DatetimeResult struct {
	Datetime string `json:"datetime"`
}

func (d Datetime) Invoke(_ context.Context, _ json.RawMessage) (any, error) {
	now := d.now
	if now == nil {
		now = time.Now
	}
	return DatetimeResult{Datetime: now().Format("2006-01-02T15:04:05")}, nil
}
