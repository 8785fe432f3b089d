package report

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRawReport(t *testing.T) {
	r := NewRawReport("6f9fc7f4-19f5-4d3f-b478-3e58e2c8fcae", "run-1", "profiles")

	_, err := uuid.Parse(r.ID)
	assert.NoError(t, err)
	assert.Equal(t, "6f9fc7f4-19f5-4d3f-b478-3e58e2c8fcae", r.TaskUUID)
	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, "profiles", r.DataPoint)
	assert.NotNil(t, r.FullReport)
	assert.False(t, r.CreatedAt.IsZero())
}

func TestPayloadInt(t *testing.T) {
	p := Payload{
		"from_json": float64(7),
		"from_int":  3,
		"as_string": "12",
		"nested":    map[string]any{},
	}

	assert.Equal(t, 7, p.Int("from_json"))
	assert.Equal(t, 3, p.Int("from_int"))
	assert.Equal(t, 0, p.Int("as_string"))
	assert.Equal(t, 0, p.Int("nested"))
	assert.Equal(t, 0, p.Int("missing"))
}

func TestPayloadFloat(t *testing.T) {
	p := Payload{
		"plain":      float64(1.5),
		"int":        42,
		"numeric":    "2.25",
		"not_number": "fast",
		"list":       []any{},
	}

	assert.Equal(t, 1.5, p.Float("plain"))
	assert.Equal(t, 42.0, p.Float("int"))
	assert.Equal(t, 2.25, p.Float("numeric"))
	assert.Equal(t, 0.0, p.Float("not_number"))
	assert.Equal(t, 0.0, p.Float("list"))
	assert.Equal(t, 0.0, p.Float("missing"))
}

func TestPayloadStr(t *testing.T) {
	p := Payload{
		"status": "Completed",
		"count":  float64(3),
	}

	assert.Equal(t, "Completed", p.Str("status"))
	assert.Equal(t, "", p.Str("count"))
	assert.Equal(t, "", p.Str("missing"))
}

func TestPayloadList(t *testing.T) {
	p := Payload{
		"events": []any{
			map[string]any{"type": "captcha"},
			"not an object",
			map[string]any{"type": "ip_ban"},
		},
		"scalar": "nope",
	}

	events := p.List("events")
	require.Len(t, events, 2)
	assert.Equal(t, "captcha", events[0].Str("type"))
	assert.Equal(t, "ip_ban", events[1].Str("type"))

	assert.Nil(t, p.List("scalar"))
	assert.Nil(t, p.List("missing"))
}

func TestPayloadMap(t *testing.T) {
	p := Payload{
		"summary": map[string]any{"total_count": float64(10)},
		"scalar":  float64(1),
	}

	m := p.Map("summary")
	require.NotNil(t, m)
	assert.Equal(t, 10, m.Int("total_count"))

	assert.Nil(t, p.Map("scalar"))
	assert.Nil(t, p.Map("missing"))
}

func TestPayloadJSONRoundTrip(t *testing.T) {
	p := Payload{
		"runs_completed": float64(2),
		"nested":         map[string]any{"k": "v"},
	}

	data, err := p.ToJSON()
	require.NoError(t, err)

	back, err := PayloadFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, 2, back.Int("runs_completed"))
	assert.Equal(t, "v", back.Map("nested").Str("k"))
}

func TestPayloadFromJSONEmptyInput(t *testing.T) {
	p, err := PayloadFromJSON(nil)
	require.NoError(t, err)
	assert.NotNil(t, p)

	p, err = PayloadFromJSON([]byte("null"))
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = PayloadFromJSON([]byte("{broken"))
	assert.Error(t, err)
}

func TestNilPayloadToJSON(t *testing.T) {
	var p Payload
	data, err := p.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
