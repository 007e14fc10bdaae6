package tibber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyData(t *testing.T) {
	msg := Classify([]byte(`{"id":"1","type":"next","payload":{"data":{"liveMeasurement":{"power":1234.5,"minPower":100.0}}}}`))

	require.Equal(t, KindData, msg.Kind)
	assert.Len(t, msg.Measurement, 2)
	assert.Equal(t, "1234.5", string(msg.Measurement["power"]))
	assert.Equal(t, "100.0", string(msg.Measurement["minPower"]))
}

func TestClassifyAck(t *testing.T) {
	msg := Classify([]byte(`{"type":"connection_ack"}`))
	assert.Equal(t, KindAck, msg.Kind)
	assert.Equal(t, AckType, msg.Type)
}

func TestClassifyAnomaly(t *testing.T) {
	msg := Classify([]byte(`{"type":"ka"}`))
	assert.Equal(t, KindAnomaly, msg.Kind)
	assert.Equal(t, "ka", msg.Type)
}

func TestClassifyServerError(t *testing.T) {
	msg := Classify([]byte(`{"id":"1","type":"next","payload":{"data":null,"errors":[{"message":"unauthorized"}]}}`))
	assert.Equal(t, KindAnomaly, msg.Kind)
	assert.Equal(t, "next", msg.Type)
	require.Len(t, msg.Errors, 1)
}

func TestClassifyErrorFrameWithArrayPayload(t *testing.T) {
	msg := Classify([]byte(`{"id":"1","type":"error","payload":[{"message":"home not found"}]}`))
	assert.Equal(t, KindAnomaly, msg.Kind)
	assert.Equal(t, "error", msg.Type)
	require.Len(t, msg.Errors, 1)
	assert.JSONEq(t, `{"message":"home not found"}`, string(msg.Errors[0]))
}

func TestClassifyTypeIgnoresPayloadShape(t *testing.T) {
	for _, frame := range []string{
		`{"payload":"x","type":"connection_ack"}`,
		`{"payload":42,"type":"connection_ack"}`,
		`{"payload":null,"type":"connection_ack"}`,
		`{"payload":{"data":"x"},"type":"connection_ack"}`,
	} {
		msg := Classify([]byte(frame))
		assert.Equal(t, KindAck, msg.Kind, "frame %s", frame)
		assert.Empty(t, msg.Errors, "frame %s", frame)
	}
}

func TestClassifyInvalid(t *testing.T) {
	msg := Classify([]byte(`not json`))
	assert.Equal(t, KindInvalid, msg.Kind)
	assert.Error(t, msg.Err)
}

func TestClassifyUnrecognized(t *testing.T) {
	for _, frame := range []string{
		`{}`,
		`[]`,
		`42`,
		`{"type":7}`,
		`{"type":null}`,
		`{"payload":{"data":{"liveMeasurement":"power"}}}`,
		`{"payload":[{"message":"home not found"}]}`,
	} {
		msg := Classify([]byte(frame))
		assert.Equal(t, KindUnrecognized, msg.Kind, "frame %s", frame)
	}
}

func TestClassifyDataTakesPrecedenceOverType(t *testing.T) {
	msg := Classify([]byte(`{"type":"connection_ack","payload":{"data":{"liveMeasurement":{}}}}`))
	assert.Equal(t, KindData, msg.Kind)
	assert.Empty(t, msg.Measurement)
}
