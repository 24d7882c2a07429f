// internal/metrics/metrics_test.go
package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tamzrod/modbus-sensorbridge/internal/modbus"
	"github.com/tamzrod/modbus-sensorbridge/internal/poller"
	"github.com/tamzrod/modbus-sensorbridge/internal/publisher"
)

// compile-time wiring checks
var (
	_ modbus.Observer    = (*Registry)(nil)
	_ poller.Observer    = (*Registry)(nil)
	_ publisher.Observer = (*Registry)(nil)
)

func TestRegistry_ConnectionLifecycle(t *testing.T) {
	r := New()

	r.ConnectionOpened("10.0.0.1:5000")
	if got := testutil.ToFloat64(r.connActive); got != 1 {
		t.Fatalf("expected 1 active, got %v", got)
	}

	r.ConnectionClosed("10.0.0.1:5000", modbus.CloseSuperseded)
	r.ConnectionOpened("10.0.0.2:5000")

	if got := testutil.ToFloat64(r.connActive); got != 1 {
		t.Fatalf("expected 1 active, got %v", got)
	}
	if got := testutil.ToFloat64(r.connTotal); got != 2 {
		t.Fatalf("expected 2 total, got %v", got)
	}
	if got := testutil.ToFloat64(r.connClosed.WithLabelValues("superseded")); got != 1 {
		t.Fatalf("expected 1 superseded close, got %v", got)
	}
}

func TestRegistry_Requests(t *testing.T) {
	r := New()

	r.RequestHandled(modbus.FCReadHoldingRegisters, modbus.ExceptionNone)
	r.RequestHandled(modbus.FCReadHoldingRegisters, modbus.ExceptionNone)
	r.RequestHandled(modbus.FunctionCode(0x07), modbus.ExceptionIllegalFunction)
	r.FrameDropped(modbus.DropProtocolID)

	if got := testutil.ToFloat64(r.requests.WithLabelValues("read_holding_registers", "none")); got != 2 {
		t.Fatalf("expected 2 reads, got %v", got)
	}
	if got := testutil.ToFloat64(r.requests.WithLabelValues("fc_0x07", "illegal_function")); got != 1 {
		t.Fatalf("expected 1 illegal function, got %v", got)
	}
	if got := testutil.ToFloat64(r.dropped.WithLabelValues("protocol_id")); got != 1 {
		t.Fatalf("expected 1 drop, got %v", got)
	}
}

func TestRegistry_SensorAndPublisher(t *testing.T) {
	r := New()

	r.SampleTaken("room", poller.ResultOK)
	r.SampleTaken("room", poller.ResultTimeout)
	r.StalenessChanged("room", true)
	r.ReadingPublished(poller.Reading{SensorID: "room", Temperature: 25, Humidity: 45.5, CO2: 812, HasCO2: true})
	r.PublishCompleted(nil)
	r.PublishCompleted(errors.New("boom"))

	if got := testutil.ToFloat64(r.samples.WithLabelValues("room", "timeout")); got != 1 {
		t.Fatalf("expected 1 timeout, got %v", got)
	}
	if got := testutil.ToFloat64(r.stale.WithLabelValues("room")); got != 1 {
		t.Fatalf("expected stale=1, got %v", got)
	}
	if got := testutil.ToFloat64(r.co2.WithLabelValues("room")); got != 812 {
		t.Fatalf("expected co2 812, got %v", got)
	}
	if got := testutil.ToFloat64(r.publishes.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed publish, got %v", got)
	}
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.SampleTaken("room", poller.ResultOK)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `sensorbridge_sensor_samples_total{result="ok",sensor="room"} 1`) {
		t.Fatalf("sample counter missing from exposition:\n%s", body)
	}
}
