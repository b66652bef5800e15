package router

import "time"

// Feature columns preceding the one-hot backend block, in order.
var baseFeatureNames = []string{
	"latency_ms",
	"cpu_load_percent",
	"packet_loss_percent",
	"jitter_ms",
	"active_requests",
	"hour",
	"dayofweek",
}

// FeatureEncoder builds the Forecast Estimator's input vector. The one-hot
// block is fixed at construction to the startup backend set, matching the
// columns the model was trained with.
type FeatureEncoder struct {
	names []string
	index map[string]int
}

// NewFeatureEncoder creates an encoder whose one-hot columns follow names.
func NewFeatureEncoder(names []string) FeatureEncoder {
	e := FeatureEncoder{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		e.index[n] = i
	}
	return e
}

// Width returns the length of every encoded vector.
func (e FeatureEncoder) Width() int { return len(baseFeatureNames) + len(e.names) }

// FeatureNames returns the column names, one-hot columns as server_<name>.
func (e FeatureEncoder) FeatureNames() []string {
	out := make([]string, 0, e.Width())
	out = append(out, baseFeatureNames...)
	for _, n := range e.names {
		out = append(out, "server_"+n)
	}
	return out
}

// BackendNames returns the one-hot column order.
func (e FeatureEncoder) BackendNames() []string {
	return append([]string(nil), e.names...)
}

// Encode returns
//
//	[latency, cpu_load, packet_loss, jitter, active_requests, hour, dayofweek, onehot...]
//
// hour is 0-23 and dayofweek is Monday=0 … Sunday=6, both read from at.
// A backend outside the startup set encodes to an all-zero one-hot block.
func (e FeatureEncoder) Encode(backend string, s MetricSnapshot, at time.Time) []float64 {
	v := make([]float64, e.Width())
	v[0] = s.Latency()
	v[1] = s.CPULoad()
	v[2] = s.PacketLoss()
	v[3] = s.Jitter()
	v[4] = float64(s.ActiveRequests())
	v[5] = float64(at.Hour())
	v[6] = float64(DayOfWeek(at))
	if i, ok := e.index[backend]; ok {
		v[len(baseFeatureNames)+i] = 1
	}
	return v
}

// DayOfWeek returns the weekday with Monday=0 and Sunday=6.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// OneHotIndex returns the index of the hot column in an encoded vector's
// one-hot block, or -1 if none is set.
func OneHotIndex(features []float64) int {
	for i := len(baseFeatureNames); i < len(features); i++ {
		if features[i] == 1 {
			return i - len(baseFeatureNames)
		}
	}
	return -1
}

// Feature column positions, for estimators that read individual columns.
// FeatureDayOfWeek+1 is the first one-hot column.
const (
	FeatureLatency = iota
	FeatureCPULoad
	FeaturePacketLoss
	FeatureJitter
	FeatureActiveRequests
	FeatureHour
	FeatureDayOfWeek
)
