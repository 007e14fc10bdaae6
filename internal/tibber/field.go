package tibber

import "fmt"

// Field is one scalar quantity of the liveMeasurement subscription.
type Field int

const (
	TimeStamp Field = iota
	Power
	LastMeterConsumption
	AccumulatedProduction
	AccumulatedConsumption
	AccumulatedConsumptionLastHour
	AccumulatedProductionLastHour
	AccumulatedCost
	AccumulatedReward
	Currency
	MinPower
	AveragePower
	MaxPower
	PowerProduction
	PowerReactive
	PowerProductionReactive
	MinPowerProduction
	MaxPowerProduction
	LastMeterProduction
	PowerFactor
	VoltagePhase1
	VoltagePhase2
	VoltagePhase3
	CurrentL1
	CurrentL2
	CurrentL3
	SignalStrength

	fieldCount
)

var wireLabels = [fieldCount]string{
	TimeStamp:                      "timestamp",
	Power:                          "power",
	LastMeterConsumption:           "lastMeterConsumption",
	AccumulatedProduction:          "accumulatedProduction",
	AccumulatedConsumption:         "accumulatedConsumption",
	AccumulatedConsumptionLastHour: "accumulatedConsumptionLastHour",
	AccumulatedProductionLastHour:  "accumulatedProductionLastHour",
	AccumulatedCost:                "accumulatedCost",
	AccumulatedReward:              "accumulatedReward",
	Currency:                       "currency",
	MinPower:                       "minPower",
	AveragePower:                   "averagePower",
	MaxPower:                       "maxPower",
	PowerProduction:                "powerProduction",
	PowerReactive:                  "powerReactive",
	PowerProductionReactive:        "powerProductionReactive",
	MinPowerProduction:             "minPowerProduction",
	MaxPowerProduction:             "maxPowerProduction",
	LastMeterProduction:            "lastMeterProduction",
	PowerFactor:                    "powerFactor",
	VoltagePhase1:                  "voltagePhase1",
	VoltagePhase2:                  "voltagePhase2",
	VoltagePhase3:                  "voltagePhase3",
	CurrentL1:                      "currentL1",
	CurrentL2:                      "currentL2",
	CurrentL3:                      "currentL3",
	SignalStrength:                 "signalStrength",
}

var labelIndex = func() map[string]Field {
	m := make(map[string]Field, fieldCount)
	for f, label := range wireLabels {
		m[label] = Field(f)
	}
	return m
}()

// String returns the camelCase label used in the GraphQL query and in
// inbound liveMeasurement payloads.
func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return wireLabels[f]
}

// IsNumeric reports whether the feed delivers the field as a number.
// timestamp and currency arrive as strings and are never forwarded.
func (f Field) IsNumeric() bool {
	return f != TimeStamp && f != Currency
}

// ParseField maps a wire label back to its Field. Matching is exact.
func ParseField(label string) (Field, error) {
	f, ok := labelIndex[label]
	if !ok {
		return 0, fmt.Errorf("unknown liveMeasurement field %q", label)
	}
	return f, nil
}

// Fields returns the full catalog in declaration order.
func Fields() []Field {
	out := make([]Field, fieldCount)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}
