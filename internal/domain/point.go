package domain

import "time"

// Point is one scalar measurement forwarded to the time-series sink.
type Point struct {
	Timestamp time.Time `json:"ts"`
	FieldName string    `json:"field_name"`
	Value     float64   `json:"value"`
	Category  string    `json:"category"`
}
