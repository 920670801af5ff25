package perftester

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exports the latest measurement of every subject as Prometheus
// metrics. It implements Observer; pass it to NewConfig with WithObserver.
type Recorder struct {
	registry     *prometheus.Registry
	timeMin      *prometheus.GaugeVec
	timeMinRel   *prometheus.GaugeVec
	memoryMax    *prometheus.GaugeVec
	memoryMaxRel *prometheus.GaugeVec
	tests        *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		timeMin: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "perftester",
			Name:      "time_min_seconds",
			Help:      "Minimum mean time per call over the timing batches.",
		}, []string{"subject"}),
		timeMinRel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "perftester",
			Name:      "time_min_relative",
			Help:      "Minimum time per call divided by the baseline time.",
		}, []string{"subject"}),
		memoryMax: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "perftester",
			Name:      "memory_max_megabytes",
			Help:      "Peak memory reading over all traces, in MB.",
		}, []string{"subject"}),
		memoryMaxRel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "perftester",
			Name:      "memory_max_relative",
			Help:      "Peak memory divided by the baseline memory.",
		}, []string{"subject"}),
		tests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perftester",
			Name:      "tests_total",
			Help:      "Performance tests run, by result.",
		}, []string{"result"}),
	}
	r.registry.MustRegister(r.timeMin, r.timeMinRel, r.memoryMax, r.memoryMaxRel, r.tests)
	return r
}

// Registry returns the registry holding the recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) ObserveTime(subject string, res TimeResult) {
	r.timeMin.WithLabelValues(subject).Set(res.Min)
	if res.HasRelative() {
		r.timeMinRel.WithLabelValues(subject).Set(res.MinRelative)
	}
}

func (r *Recorder) ObserveMemory(subject string, res MemoryResult) {
	r.memoryMax.WithLabelValues(subject).Set(res.Max)
	if res.HasRelative() {
		r.memoryMaxRel.WithLabelValues(subject).Set(res.MaxRelative)
	}
}

// ObserveTest counts a finished suite test.
func (r *Recorder) ObserveTest(name string, err error) {
	result := "passed"
	if err != nil {
		result = "failed"
	}
	r.tests.WithLabelValues(result).Inc()
}

// WriteTextfile writes the current metrics in the text exposition format,
// suitable for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
