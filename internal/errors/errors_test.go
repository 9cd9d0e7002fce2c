package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/motion-classifier/internal/analysis"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIntegrationErrBuilder(t *testing.T) {
	validationErr := NewValidationError("test validation error", "field1")
	require.NotNil(t, validationErr)
	assert.Equal(t, "[VALIDATION_ERROR] test validation error", validationErr.Error())
	assert.Equal(t, CategoryValidation, validationErr.Category)
	assert.Equal(t, http.StatusBadRequest, validationErr.HTTPStatus)

	withMap := NewValidationErrorWithMap("Batch rejected", map[string]string{
		"field1": "field1 error",
		"field2": "field2 error",
	})
	assert.Equal(t, CategoryValidation, withMap.Category)

	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("Custom error message")
	customErr := NewAppError(builder, CategoryValidation, http.StatusBadRequest)
	assert.Equal(t, "Custom error message", customErr.Msg)

	storageErr := NewStorageError("database unavailable", fmt.Errorf("disk I/O error"))
	assert.Equal(t, CategoryStorage, storageErr.Category)
	assert.Equal(t, http.StatusServiceUnavailable, storageErr.HTTPStatus)
	assert.Equal(t, "[UNAVAILABLE] database unavailable", storageErr.Error())

	notFound := NewNotFoundError("no readings stored")
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus)
	assert.Equal(t, "[NOT_FOUND] no readings stored", notFound.Error())
}

func TestToAppError_AnalysisErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		status   int
		prefix   string
	}{
		{
			name:     "missing input",
			err:      &analysis.InputMissingError{Index: -1},
			category: CategoryValidation,
			status:   http.StatusBadRequest,
			prefix:   "[VALIDATION_ERROR]",
		},
		{
			name:     "insufficient data",
			err:      &analysis.InsufficientDataError{Got: 3, Want: 21},
			category: CategoryValidation,
			status:   http.StatusBadRequest,
			prefix:   "[VALIDATION_ERROR]",
		},
		{
			name:     "wrapped insufficient data",
			err:      fmt.Errorf("predict: %w", &analysis.InsufficientDataError{Got: 3, Want: 21}),
			category: CategoryValidation,
			status:   http.StatusBadRequest,
			prefix:   "[VALIDATION_ERROR]",
		},
		{
			name:     "schema mismatch",
			err:      &analysis.SchemaMismatchError{Missing: []string{"AcX_mean"}},
			category: CategoryInference,
			status:   http.StatusInternalServerError,
			prefix:   "[SCHEMA_MISMATCH]",
		},
		{
			name:     "scoring failure",
			err:      &analysis.ScoringError{Stage: "classify", Err: fmt.Errorf("nan")},
			category: CategoryInference,
			status:   http.StatusInternalServerError,
			prefix:   "[INFERENCE_ERROR]",
		},
		{
			name:     "feature overflow",
			err:      &analysis.ScoringError{Stage: analysis.StageFeatures, Err: fmt.Errorf("AcX range is not finite")},
			category: CategoryInference,
			status:   http.StatusInternalServerError,
			prefix:   "[INFERENCE_ERROR]",
		},
		{
			name:     "artifact load failure",
			err:      fmt.Errorf("startup: %w", &analysis.ScoringError{Stage: analysis.StageLoad, Err: fmt.Errorf("no such file")}),
			category: CategoryConfiguration,
			status:   http.StatusInternalServerError,
			prefix:   "[CONFIGURATION_ERROR]",
		},
		{
			name:     "unknown error",
			err:      fmt.Errorf("standard error"),
			category: CategoryInternal,
			status:   http.StatusInternalServerError,
			prefix:   "[INTERNAL_ERROR]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ToAppError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.category, appErr.Category)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
			assert.Contains(t, appErr.Error(), tt.prefix)
			assert.Equal(t, tt.status < 500, IsClientError(tt.err))
		})
	}

	assert.Nil(t, ToAppError(nil))
}

func TestToAppError_Passthrough(t *testing.T) {
	original := NewRateLimitError("60s")
	assert.Same(t, original, ToAppError(original))
	assert.Same(t, original, ToAppError(fmt.Errorf("wrapped: %w", original)))
}

func TestToAppError_JSONErrors(t *testing.T) {
	var v struct{ Data []int }
	err := json.Unmarshal([]byte(`{"Data":"nope"}`), &v)
	require.Error(t, err)

	appErr := ToAppError(err)
	assert.Equal(t, CategoryValidation, appErr.Category)

	tooLarge := ToAppError(&http.MaxBytesError{Limit: 10})
	assert.Equal(t, http.StatusRequestEntityTooLarge, tooLarge.HTTPStatus)
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(&analysis.InsufficientDataError{Got: 1, Want: 21})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(CategoryValidation), body["category"])
}

func TestRecoveryHandler(t *testing.T) {
	r := gin.New()
	r.Use(RecoveryHandler())
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAppError_MarshalJSON(t *testing.T) {
	appErr := NewSchemaMismatchError(&analysis.SchemaMismatchError{Missing: []string{"AcX_mean", "AcY_mean"}})
	appErr.RequestID = "req-1"

	out, err := json.Marshal(appErr)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &body))
	assert.Equal(t, "Feature schema does not match the loaded model", body["error"])
	assert.Equal(t, "SCHEMA_MISMATCH", body["code"])
	assert.Equal(t, "inference", body["category"])
	assert.Equal(t, "req-1", body["request_id"])
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "AcX_mean,AcY_mean", details["missing"])
}
