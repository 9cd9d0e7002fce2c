package analysis

// Channel identifies one sensor axis
type Channel string

const (
	ChannelAcX Channel = "AcX"
	ChannelAcY Channel = "AcY"
	ChannelAcZ Channel = "AcZ"
	ChannelGyX Channel = "GyX"
	ChannelGyY Channel = "GyY"
	ChannelGyZ Channel = "GyZ"
)

// DefaultWindowSize is the batch size the shipped models were trained on
const DefaultWindowSize = 21

// Channels lists the sensor axes in feature order
var Channels = [...]Channel{ChannelAcX, ChannelAcY, ChannelAcZ, ChannelGyX, ChannelGyY, ChannelGyZ}

// ChannelMetrics lists the per-channel metrics in feature order
var ChannelMetrics = [...]string{
	"mean",
	"std",
	"min",
	"max",
	"range",
	"iqr",
	"rms",
	"skew",
	"kurtosis",
	"cumsum",
	"zero_crossing",
	"entropy",
	"fft_peak",
	"spectral_energy",
	"dominant_freq",
}

// MagnitudeMetrics lists the combined accelerometer/gyroscope features in order
var MagnitudeMetrics = [...]string{
	"acc_mag_mean",
	"acc_mag_std",
	"gyro_mag_mean",
	"gyro_mag_std",
}

// FeatureCount is the length of every assembled FeatureVector
const FeatureCount = len(Channels)*len(ChannelMetrics) + len(MagnitudeMetrics)

// FeatureName joins a channel and a metric into a schema key
func FeatureName(ch Channel, metric string) string {
	return string(ch) + "_" + metric
}

// FeatureSchema returns the ordered feature names produced by the extractor
func FeatureSchema() []string {
	names := make([]string, 0, FeatureCount)
	for _, ch := range Channels {
		for _, m := range ChannelMetrics {
			names = append(names, FeatureName(ch, m))
		}
	}
	for _, m := range MagnitudeMetrics {
		names = append(names, m)
	}
	return names
}
