// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamzrod/modbus-sensorbridge/internal/modbus"
	"github.com/tamzrod/modbus-sensorbridge/internal/poller"
)

const namespace = "sensorbridge"

// Registry owns every bridge collector.
// It observes the Modbus server, the pollers and the publisher.
type Registry struct {
	reg *prometheus.Registry

	connActive  prometheus.Gauge
	connTotal   prometheus.Counter
	connClosed  *prometheus.CounterVec
	requests    *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	samples     *prometheus.CounterVec
	stale       *prometheus.GaugeVec
	publishes   *prometheus.CounterVec
	temperature *prometheus.GaugeVec
	humidity    *prometheus.GaugeVec
	co2         *prometheus.GaugeVec
}

// New builds a registry with Go runtime and process collectors included.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		connActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "modbus", Name: "connections_active",
			Help: "Client connections currently served (0 or 1).",
		}),
		connTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "modbus", Name: "connections_total",
			Help: "Client connections accepted.",
		}),
		connClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "modbus", Name: "connections_closed_total",
			Help: "Client connections closed, by reason.",
		}, []string{"reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "modbus", Name: "requests_total",
			Help: "Requests answered, by function and exception.",
		}, []string{"function", "exception"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "modbus", Name: "frames_dropped_total",
			Help: "Frames dropped without a response, by reason.",
		}, []string{"reason"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sensor", Name: "samples_total",
			Help: "Acquisition cycles, by sensor and result.",
		}, []string{"sensor", "result"}),
		stale: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "sensor", Name: "stale",
			Help: "1 while the sensor reading is stale.",
		}, []string{"sensor"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "publisher", Name: "cycles_total",
			Help: "Publish cycles, by result.",
		}, []string{"result"}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "sensor", Name: "temperature_celsius",
			Help: "Last published temperature (°C).",
		}, []string{"sensor"}),
		humidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "sensor", Name: "humidity_percent",
			Help: "Last published relative humidity (%).",
		}, []string{"sensor"}),
		co2: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "sensor", Name: "co2_ppm",
			Help: "Last published CO2 concentration (ppm).",
		}, []string{"sensor"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.connActive, r.connTotal, r.connClosed, r.requests, r.dropped,
		r.samples, r.stale, r.publishes,
		r.temperature, r.humidity, r.co2,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ---- modbus.Observer ----

func (r *Registry) ConnectionOpened(string) {
	r.connActive.Inc()
	r.connTotal.Inc()
}

func (r *Registry) ConnectionClosed(_ string, reason modbus.CloseReason) {
	r.connActive.Dec()
	r.connClosed.WithLabelValues(string(reason)).Inc()
}

func (r *Registry) RequestHandled(fc modbus.FunctionCode, exc modbus.Exception) {
	r.requests.WithLabelValues(fc.String(), exc.String()).Inc()
}

func (r *Registry) FrameDropped(reason modbus.DropReason) {
	r.dropped.WithLabelValues(string(reason)).Inc()
}

// ---- poller.Observer ----

func (r *Registry) SampleTaken(sensor string, result poller.Result) {
	r.samples.WithLabelValues(sensor, string(result)).Inc()
}

func (r *Registry) StalenessChanged(sensor string, stale bool) {
	v := 0.0
	if stale {
		v = 1
	}
	r.stale.WithLabelValues(sensor).Set(v)
}

// ---- publisher.Observer ----

func (r *Registry) ReadingPublished(rd poller.Reading) {
	r.temperature.WithLabelValues(rd.SensorID).Set(rd.Temperature)
	r.humidity.WithLabelValues(rd.SensorID).Set(rd.Humidity)
	if rd.HasCO2 {
		r.co2.WithLabelValues(rd.SensorID).Set(float64(rd.CO2))
	}
}

func (r *Registry) PublishCompleted(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.publishes.WithLabelValues(result).Inc()
}
