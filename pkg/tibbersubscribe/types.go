package tibbersubscribe

import (
	"github.com/CasaMack/tibber-subscribe/internal/domain"
	"github.com/CasaMack/tibber-subscribe/internal/ports"
	"github.com/CasaMack/tibber-subscribe/internal/tibber"
)

// Point is one numeric liveMeasurement value as handed to a Sink.
type Point = domain.Point

// Sink persists points to any downstream system.
type Sink = ports.Sink

// Session drives one subscription connection; the runtime reconnects by
// calling Run again.
type Session = ports.Session

// Observability emits logs and metrics about sessions and sink writes.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// MeasurementField names one quantity of the liveMeasurement feed.
type MeasurementField = tibber.Field

// SubscriptionRequest holds the two outbound frames of a session.
type SubscriptionRequest = tibber.SubscriptionRequest

// Category is the value carried by every Point.Category.
const Category = tibber.Category

// ParseField maps a camelCase label such as "power" to its MeasurementField.
func ParseField(label string) (MeasurementField, error) {
	return tibber.ParseField(label)
}

// MeasurementFields returns the full field catalog.
func MeasurementFields() []MeasurementField {
	return tibber.Fields()
}
