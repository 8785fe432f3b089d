// Package report defines the ingestion-side domain model: tasks, raw run
// reports, and the semi-structured payload each report carries.
package report

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Task is the unit of recurring bot work. It is created on first report
// ingestion if absent and is never deleted here.
type Task struct {
	UUID      string    `json:"uuid"`
	JobUUID   string    `json:"job_uuid,omitempty"`
	Name      string    `json:"name"`
	TaskType  string    `json:"task_type"`
	Interact  bool      `json:"interact"`
	CreatedAt time.Time `json:"created_at"`
}

// RawReport is one ingested execution report. A (task, run, data point)
// triple is unique; duplicates are skipped at insert time. Rows are
// append-only.
type RawReport struct {
	ID         string     `json:"id"`
	TaskUUID   string     `json:"task_uuid"`
	RunID      string     `json:"run_id"`
	Service    string     `json:"service,omitempty"`
	EndPoint   string     `json:"end_point,omitempty"`
	DataPoint  string     `json:"data_point,omitempty"`
	StartedAt  *time.Time `json:"report_start_datetime,omitempty"`
	EndedAt    *time.Time `json:"report_end_datetime,omitempty"`
	FullReport Payload    `json:"full_report"`
	CreatedAt  time.Time  `json:"created_at"`
}

func NewRawReport(taskUUID, runID, dataPoint string) *RawReport {
	return &RawReport{
		ID:         uuid.New().String(),
		TaskUUID:   taskUUID,
		RunID:      runID,
		DataPoint:  dataPoint,
		FullReport: Payload{},
		CreatedAt:  time.Now().UTC(),
	}
}

// Payload is the arbitrary nested JSON body of a report. All field access
// goes through the typed accessors below, which implement the one coercion
// policy used everywhere: missing -> default, wrong type -> default.
type Payload map[string]any

// Int returns the named field as an int. Whole JSON numbers decode as
// float64, so that is the common case; anything non-numeric yields zero.
func (p Payload) Int(key string) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}

// Float returns the named field as a float64. Numeric strings are parsed;
// a failed parse degrades to zero.
func (p Payload) Float(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Str returns the named field if it is a string, otherwise "".
func (p Payload) Str(key string) string {
	s, _ := p[key].(string)
	return s
}

// List returns the named field as a list of objects, dropping any element
// that is not an object.
func (p Payload) List(key string) []Payload {
	raw, ok := p[key].([]any)
	if !ok {
		return nil
	}

	items := make([]Payload, 0, len(raw))
	for _, el := range raw {
		if m, ok := el.(map[string]any); ok {
			items = append(items, Payload(m))
		}
	}

	return items
}

// Map returns the named field as a nested object, or nil.
func (p Payload) Map(key string) Payload {
	m, ok := p[key].(map[string]any)
	if !ok {
		return nil
	}
	return Payload(m)
}

func (p Payload) ToJSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

func PayloadFromJSON(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, nil
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p == nil {
		p = Payload{}
	}

	return p, nil
}
