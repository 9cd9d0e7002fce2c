package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

const (
	ScalerFile  = "scaler.json"
	NetworkFile = "model.json"

	maxArtifactSize = 8 * 1024 * 1024
)

// StandardScaler holds exported standard-scaler parameters
type StandardScaler struct {
	FeatureNames []string  `json:"feature_names_in"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// Validate checks that the parameter slices line up with the schema
func (s *StandardScaler) Validate() error {
	if len(s.FeatureNames) == 0 {
		return errors.New("scaler has no feature names")
	}
	if len(s.Mean) != len(s.FeatureNames) || len(s.Scale) != len(s.FeatureNames) {
		return fmt.Errorf("scaler has %d names, %d means and %d scales", len(s.FeatureNames), len(s.Mean), len(s.Scale))
	}
	for i := range s.Mean {
		if math.IsNaN(s.Mean[i]) || math.IsInf(s.Mean[i], 0) || math.IsNaN(s.Scale[i]) || math.IsInf(s.Scale[i], 0) {
			return fmt.Errorf("scaler parameter for %s is not finite", s.FeatureNames[i])
		}
	}
	return nil
}

func (s *StandardScaler) Schema() []string {
	return append([]string(nil), s.FeatureNames...)
}

// Transform applies (x - mean) / scale; a zero scale is treated as 1
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

// IdentityScaler returns a scaler that passes features through unchanged
func IdentityScaler(schema []string) *StandardScaler {
	s := &StandardScaler{
		FeatureNames: append([]string(nil), schema...),
		Mean:         make([]float64, len(schema)),
		Scale:        make([]float64, len(schema)),
	}
	for i := range s.Scale {
		s.Scale[i] = 1
	}
	return s
}

// DenseLayer is one fully connected layer, y = act(xW + b). Kernel is
// laid out inputs x units.
type DenseLayer struct {
	Activation string      `json:"activation"`
	Kernel     [][]float64 `json:"kernel"`
	Bias       []float64   `json:"bias"`

	weights *mat.Dense
	bias    *mat.VecDense
}

// DenseNetwork is a sequential stack of dense layers ending in one unit
type DenseNetwork struct {
	Name   string        `json:"name,omitempty"`
	Layers []*DenseLayer `json:"layers"`
}

// Init validates the layer shapes and builds the matrices
func (n *DenseNetwork) Init() error {
	if len(n.Layers) == 0 {
		return errors.New("network has no layers")
	}
	prevUnits := -1
	for i, l := range n.Layers {
		if _, ok := activations[l.Activation]; !ok {
			return fmt.Errorf("layer %d: unsupported activation %q", i, l.Activation)
		}
		rows := len(l.Kernel)
		if rows == 0 || len(l.Kernel[0]) == 0 {
			return fmt.Errorf("layer %d: empty kernel", i)
		}
		cols := len(l.Kernel[0])
		if prevUnits >= 0 && rows != prevUnits {
			return fmt.Errorf("layer %d: expects %d inputs, previous layer has %d units", i, rows, prevUnits)
		}
		if len(l.Bias) != cols {
			return fmt.Errorf("layer %d: %d biases for %d units", i, len(l.Bias), cols)
		}
		data := make([]float64, 0, rows*cols)
		for r, row := range l.Kernel {
			if len(row) != cols {
				return fmt.Errorf("layer %d: kernel row %d has %d columns, want %d", i, r, len(row), cols)
			}
			data = append(data, row...)
		}
		l.weights = mat.NewDense(rows, cols, data)
		l.bias = mat.NewVecDense(cols, append([]float64(nil), l.Bias...))
		prevUnits = cols
	}
	if prevUnits != 1 {
		return fmt.Errorf("output layer has %d units, want 1", prevUnits)
	}
	return nil
}

// InputSize returns the width of the first layer
func (n *DenseNetwork) InputSize() int {
	if len(n.Layers) == 0 {
		return 0
	}
	return len(n.Layers[0].Kernel)
}

// Predict runs a forward pass and returns the single output unit
func (n *DenseNetwork) Predict(x []float64) (float64, error) {
	if len(n.Layers) == 0 || n.Layers[0].weights == nil {
		return 0, errors.New("network not initialized")
	}
	if len(x) != n.InputSize() {
		return 0, fmt.Errorf("network expects %d inputs, got %d", n.InputSize(), len(x))
	}

	var h mat.Vector = mat.NewVecDense(len(x), append([]float64(nil), x...))
	for _, l := range n.Layers {
		_, cols := l.weights.Dims()
		out := mat.NewVecDense(cols, nil)
		out.MulVec(l.weights.T(), h)
		out.AddVec(out, l.bias)
		act := activations[l.Activation]
		for i := 0; i < cols; i++ {
			out.SetVec(i, act(out.AtVec(i)))
		}
		h = out
	}
	return h.AtVec(0), nil
}

var activations = map[string]func(float64) float64{
	"linear":  func(v float64) float64 { return v },
	"relu":    func(v float64) float64 { return math.Max(0, v) },
	"sigmoid": func(v float64) float64 { return 1 / (1 + math.Exp(-v)) },
	"tanh":    math.Tanh,
}

// ArtifactStore loads exported model artifacts by version
type ArtifactStore struct {
	dir string
}

// NewArtifactStore creates a new artifact store rooted at dir
func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{dir: dir}
}

func (a *ArtifactStore) path(version, file string) string {
	return filepath.Join(a.dir, version, file)
}

// LoadScaler reads and validates the scaler for a version
func (a *ArtifactStore) LoadScaler(version string) (*StandardScaler, error) {
	var s StandardScaler
	if err := readArtifact(a.path(version, ScalerFile), &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scaler artifact: %w", err)
	}
	return &s, nil
}

// LoadNetwork reads and initializes the classifier for a version
func (a *ArtifactStore) LoadNetwork(version string) (*DenseNetwork, error) {
	var n DenseNetwork
	if err := readArtifact(a.path(version, NetworkFile), &n); err != nil {
		return nil, err
	}
	if err := n.Init(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}
	return &n, nil
}

// LoadScoringContext loads both artifacts of a version and validates them
// against the feature schema.
func (a *ArtifactStore) LoadScoringContext(version string) (*ScoringContext, error) {
	scaler, err := a.LoadScaler(version)
	if err != nil {
		return nil, &ScoringError{Stage: StageLoad, Err: err}
	}
	network, err := a.LoadNetwork(version)
	if err != nil {
		return nil, &ScoringError{Stage: StageLoad, Err: err}
	}
	return NewScoringContext(version, scaler, network)
}

// SaveScaler writes a scaler artifact for a version
func (a *ArtifactStore) SaveScaler(version string, s *StandardScaler) error {
	return writeArtifact(a.path(version, ScalerFile), s)
}

// SaveNetwork writes a classifier artifact for a version
func (a *ArtifactStore) SaveNetwork(version string, n *DenseNetwork) error {
	return writeArtifact(a.path(version, NetworkFile), n)
}

func readArtifact(path string, v interface{}) error {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return fmt.Errorf("artifact must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to stat artifact: %w", err)
	}
	if info.Size() > maxArtifactSize {
		return fmt.Errorf("artifact too large: %d bytes (max %d)", info.Size(), maxArtifactSize)
	}

	file, err := os.Open(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		return fmt.Errorf("failed to decode artifact %s: %w", filepath.Base(cleanPath), err)
	}
	return nil
}

// createArtifact opens an artifact file for writing
var createArtifact = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

func writeArtifact(path string, v interface{}) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	file, err := createArtifact(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close artifact file: %w", closeErr)
		}
	}()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	return nil
}
