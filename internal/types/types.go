package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// SensorSample is one validated accelerometer/gyroscope reading
type SensorSample struct {
	AcX float64 `json:"AcX"`
	AcY float64 `json:"AcY"`
	AcZ float64 `json:"AcZ"`
	GyX float64 `json:"GyX"`
	GyY float64 `json:"GyY"`
	GyZ float64 `json:"GyZ"`
}

// SensorRecord is the wire form of a sample. Axes are pointers so an absent
// key can be told apart from a zero reading.
type SensorRecord struct {
	AcX *float64 `json:"AcX"`
	AcY *float64 `json:"AcY"`
	AcZ *float64 `json:"AcZ"`
	GyX *float64 `json:"GyX"`
	GyY *float64 `json:"GyY"`
	GyZ *float64 `json:"GyZ"`
}

// MissingFieldError reports the first axis absent from a SensorRecord
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %s", e.Field)
}

// Sample validates the record into a SensorSample
func (r SensorRecord) Sample() (SensorSample, error) {
	fields := []struct {
		name string
		v    *float64
	}{
		{"AcX", r.AcX}, {"AcY", r.AcY}, {"AcZ", r.AcZ},
		{"GyX", r.GyX}, {"GyY", r.GyY}, {"GyZ", r.GyZ},
	}
	for _, f := range fields {
		if f.v == nil {
			return SensorSample{}, &MissingFieldError{Field: f.name}
		}
	}
	return SensorSample{
		AcX: *r.AcX, AcY: *r.AcY, AcZ: *r.AcZ,
		GyX: *r.GyX, GyY: *r.GyY, GyZ: *r.GyZ,
	}, nil
}

// PredictRequest represents the request structure for the predict and features endpoints
type PredictRequest struct {
	Data []SensorRecord `json:"data"`
}

// PredictResponse is the scoring decision returned to clients
type PredictResponse struct {
	PredictedLabel       int     `json:"predicted_label"`
	PredictedProbability float64 `json:"predicted_probability"`
}

// SensorReading is a stored reading as pushed by the device firmware
type SensorReading struct {
	ID        int64     `json:"id,omitempty"`
	AcX       float64   `json:"AcX"`
	AcY       float64   `json:"AcY"`
	AcZ       float64   `json:"AcZ"`
	GyX       float64   `json:"GyX"`
	GyY       float64   `json:"GyY"`
	GyZ       float64   `json:"GyZ"`
	BPM       int       `json:"bpm"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceTimeLayout is the DATETIME form sent by the device firmware. It
// carries no zone and is read as UTC.
const DeviceTimeLayout = "2006-01-02 15:04:05"

// UnmarshalJSON accepts the timestamp as RFC 3339 or DeviceTimeLayout. An
// empty or null timestamp leaves it zero.
func (r *SensorReading) UnmarshalJSON(data []byte) error {
	type plain SensorReading
	aux := struct {
		*plain
		Timestamp *string `json:"timestamp"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Timestamp = time.Time{}
	if aux.Timestamp == nil || *aux.Timestamp == "" {
		return nil
	}
	ts, err := ParseTimestamp(*aux.Timestamp)
	if err != nil {
		return err
	}
	r.Timestamp = ts
	return nil
}

// ParseTimestamp parses a reading timestamp in either accepted layout
func ParseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation(DeviceTimeLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: want RFC 3339 or %q", value, DeviceTimeLayout)
	}
	return ts, nil
}

// Sample drops the non-motion fields of a stored reading
func (r SensorReading) Sample() SensorSample {
	return SensorSample{AcX: r.AcX, AcY: r.AcY, AcZ: r.AcZ, GyX: r.GyX, GyY: r.GyY, GyZ: r.GyZ}
}

// BatchIngestRequest carries a batch of readings from a device
type BatchIngestRequest struct {
	BatchData []SensorReading `json:"batch_data" binding:"required"`
}

// BatchIngestResponse summarizes a batch insert
type BatchIngestResponse struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}
