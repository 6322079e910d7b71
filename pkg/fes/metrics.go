package fes

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/robotalks/fes.go/pkg/transport"
	"github.com/robotalks/fes.go/pkg/uecu"
)

// Metrics counts the traffic of a transport.
type Metrics struct {
	framesSent  *prometheus.CounterVec
	writeErrors *prometheus.CounterVec
	bytesRead   prometheus.Counter
	readErrors  prometheus.Counter
}

// NewMetrics creates Metrics with the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to the board by message type",
		}, []string{"type"}),
		writeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_errors_total",
			Help:      "Failed writes by message type",
		}, []string{"type"}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Bytes received from the board",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_errors_total",
			Help:      "Failed reads",
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.framesSent.Describe(ch)
	m.writeErrors.Describe(ch)
	m.bytesRead.Describe(ch)
	m.readErrors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.framesSent.Collect(ch)
	m.writeErrors.Collect(ch)
	m.bytesRead.Collect(ch)
	m.readErrors.Collect(ch)
}

// Instrument wraps t so its traffic is counted.
func (m *Metrics) Instrument(t transport.Transport) transport.Transport {
	return &instrumentedTransport{Transport: t, m: m}
}

type instrumentedTransport struct {
	transport.Transport
	m *Metrics
}

func (t *instrumentedTransport) IsVirtual() bool {
	return transport.IsVirtual(t.Transport)
}

func (t *instrumentedTransport) Write(p []byte) (int, error) {
	typ := "unknown"
	if len(p) >= uecu.HeaderLen {
		typ = uecu.MsgType(p[2]).String()
	}
	n, err := t.Transport.Write(p)
	if err != nil {
		t.m.writeErrors.WithLabelValues(typ).Inc()
	} else {
		t.m.framesSent.WithLabelValues(typ).Inc()
	}
	return n, err
}

func (t *instrumentedTransport) Read(p []byte) (int, error) {
	n, err := t.Transport.Read(p)
	if err != nil {
		t.m.readErrors.Inc()
	}
	t.m.bytesRead.Add(float64(n))
	return n, err
}

// StatusCollector exports the cached stimulator state as gauges.
type StatusCollector struct {
	stim *Stimulator

	enabled    *prometheus.Desc
	running    *prometheus.Desc
	scheduleID *prometheus.Desc
	amplitude  *prometheus.Desc
	pulseWidth *prometheus.Desc
	maxAmp     *prometheus.Desc
	maxPW      *prometheus.Desc
}

// NewStatusCollector creates a StatusCollector for s.
func NewStatusCollector(namespace string, s *Stimulator) *StatusCollector {
	constLabels := prometheus.Labels{"stimulator": s.Name()}
	eventLabels := []string{"event", "channel"}
	return &StatusCollector{
		stim: s,
		enabled: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "enabled"),
			"Whether the stimulator is enabled", nil, constLabels),
		running: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "running"),
			"Whether the schedule was started", nil, constLabels),
		scheduleID: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "schedule_id"),
			"Schedule id assigned by the board", nil, constLabels),
		amplitude: prometheus.NewDesc(prometheus.BuildFQName(namespace, "event", "amplitude"),
			"Cached event amplitude", eventLabels, constLabels),
		pulseWidth: prometheus.NewDesc(prometheus.BuildFQName(namespace, "event", "pulse_width"),
			"Cached event pulse width", eventLabels, constLabels),
		maxAmp: prometheus.NewDesc(prometheus.BuildFQName(namespace, "event", "max_amplitude"),
			"Amplitude limit of the event channel", eventLabels, constLabels),
		maxPW: prometheus.NewDesc(prometheus.BuildFQName(namespace, "event", "max_pulse_width"),
			"Pulse width limit of the event channel", eventLabels, constLabels),
	}
}

// Describe implements prometheus.Collector.
func (c *StatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.enabled
	ch <- c.running
	ch <- c.scheduleID
	ch <- c.amplitude
	ch <- c.pulseWidth
	ch <- c.maxAmp
	ch <- c.maxPW
}

// Collect implements prometheus.Collector.
func (c *StatusCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.stim.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.enabled, prometheus.GaugeValue, boolValue(st.Enabled))
	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, boolValue(st.Running))
	if st.Scheduled {
		ch <- prometheus.MustNewConstMetric(c.scheduleID, prometheus.GaugeValue, float64(st.ScheduleID))
	}
	for i, ev := range st.Events {
		labels := []string{strconv.Itoa(i + 1), ev.Channel}
		ch <- prometheus.MustNewConstMetric(c.amplitude, prometheus.GaugeValue, float64(ev.Amplitude), labels...)
		ch <- prometheus.MustNewConstMetric(c.pulseWidth, prometheus.GaugeValue, float64(ev.PulseWidth), labels...)
		ch <- prometheus.MustNewConstMetric(c.maxAmp, prometheus.GaugeValue, float64(ev.MaxAmplitude), labels...)
		ch <- prometheus.MustNewConstMetric(c.maxPW, prometheus.GaugeValue, float64(ev.MaxPulseWidth), labels...)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
