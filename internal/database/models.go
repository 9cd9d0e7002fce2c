package database

import (
	"time"

	"github.com/google/uuid"
)

// Prediction sources
const (
	SourceRequest = "request"
	SourceStored  = "stored"
)

// Prediction is a persisted scoring decision
type Prediction struct {
	ID           string    `json:"id" db:"id"`
	Label        int       `json:"predicted_label" db:"label"`
	Probability  float64   `json:"predicted_probability" db:"probability"`
	WindowSize   int       `json:"window_size" db:"window_size"`
	ModelVersion string    `json:"model_version" db:"model_version"`
	Source       string    `json:"source" db:"source"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// NewPrediction creates a new prediction record with generated ID
func NewPrediction(label int, probability float64, windowSize int, modelVersion, source string) *Prediction {
	return &Prediction{
		ID:           uuid.New().String(),
		Label:        label,
		Probability:  probability,
		WindowSize:   windowSize,
		ModelVersion: modelVersion,
		Source:       source,
		CreatedAt:    time.Now().UTC(),
	}
}
