package analysis

import (
	"sort"
	"strings"
)

// AssembleFeatures concatenates the per-channel features, in Channels order,
// with the magnitude features into one FeatureVector.
func AssembleFeatures(channels [len(Channels)]ChannelFeatures, mag Magnitude) FeatureVector {
	names := FeatureSchema()
	values := make([]float64, 0, FeatureCount)
	for _, cf := range channels {
		v := cf.values()
		values = append(values, v[:]...)
	}
	values = append(values, mag.AccMean, mag.AccStd, mag.GyroMean, mag.GyroStd)

	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	return FeatureVector{names: names, values: values, index: index}
}

// ValidateSchema checks that the vector's key set equals the schema exactly
func ValidateSchema(fv FeatureVector, schema []string) error {
	seen := make(map[string]bool, len(schema))
	var missing, dups []string
	for _, name := range schema {
		if seen[name] {
			dups = append(dups, name)
			continue
		}
		seen[name] = true
		if _, ok := fv.index[name]; !ok {
			missing = append(missing, name)
		}
	}

	var unexpected []string
	for _, name := range fv.names {
		if !seen[name] {
			unexpected = append(unexpected, name)
		}
	}

	if len(missing) == 0 && len(unexpected) == 0 && len(dups) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unexpected)
	err := &SchemaMismatchError{Missing: missing, Unexpected: unexpected}
	if len(dups) > 0 {
		err.Detail = "duplicate schema entries " + strings.Join(dups, ", ")
	}
	return err
}
