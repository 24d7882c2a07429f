// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/modbus-sensorbridge/internal/config"
)

type fakeDriver struct {
	mu    sync.Mutex
	ready bool
	err   error
	temp  float64
	rh    float64
	calls int

	// block, when set, holds DataAvailable until closed.
	block chan struct{}
}

func (f *fakeDriver) DataAvailable() (bool, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready, f.err
}

func (f *fakeDriver) ReadTemperature() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.temp, nil
}

func (f *fakeDriver) ReadHumidity() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rh, nil
}

func (f *fakeDriver) set(ready bool, err error) {
	f.mu.Lock()
	f.ready, f.err = ready, err
	f.mu.Unlock()
}

type fakeCO2Driver struct {
	*fakeDriver
	co2    uint16
	co2Err error
}

func (f *fakeCO2Driver) ReadCO2() (uint16, error) {
	return f.co2, f.co2Err
}

type recordingObserver struct {
	mu      sync.Mutex
	results []Result
	stale   []bool
}

func (o *recordingObserver) SampleTaken(_ string, r Result) {
	o.mu.Lock()
	o.results = append(o.results, r)
	o.mu.Unlock()
}

func (o *recordingObserver) StalenessChanged(_ string, stale bool) {
	o.mu.Lock()
	o.stale = append(o.stale, stale)
	o.mu.Unlock()
}

func testConfig() Config {
	return Config{
		SensorID:    "s1",
		Interval:    time.Second,
		ReadTimeout: time.Second,
		StaleAfter:  3,
		CO2:         true,
	}
}

func newTestPoller(t *testing.T, c Config, drv Driver, obs Observer) *Poller {
	t.Helper()
	p, err := New(c, drv, zerolog.Nop(), obs)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return p
}

func TestNew_Validation(t *testing.T) {
	drv := &fakeCO2Driver{fakeDriver: &fakeDriver{}}

	bad := []Config{
		{Interval: time.Second, ReadTimeout: time.Second, StaleAfter: 1},
		{SensorID: "s", ReadTimeout: time.Second, StaleAfter: 1},
		{SensorID: "s", Interval: time.Second, StaleAfter: 1},
		{SensorID: "s", Interval: time.Second, ReadTimeout: time.Second},
	}
	for i, c := range bad {
		if _, err := New(c, drv, zerolog.Nop(), nil); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	if _, err := New(testConfig(), nil, zerolog.Nop(), nil); err == nil {
		t.Fatalf("expected error for nil driver")
	}
}

func TestNew_CO2RequiresCapability(t *testing.T) {
	if _, err := New(testConfig(), &fakeDriver{}, zerolog.Nop(), nil); err == nil {
		t.Fatalf("expected error for driver without co2")
	}

	c := testConfig()
	c.CO2 = false
	if _, err := New(c, &fakeDriver{}, zerolog.Nop(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSampleOnce_Success(t *testing.T) {
	drv := &fakeCO2Driver{fakeDriver: &fakeDriver{ready: true, temp: 25.0, rh: 45.5}, co2: 812}
	p := newTestPoller(t, testConfig(), drv, nil)

	if got := p.Store().Load(); got.Valid || got.SensorID != "s1" || !got.HasCO2 {
		t.Fatalf("unexpected initial reading: %+v", got)
	}

	if err := p.SampleOnce(); err != nil {
		t.Fatalf("SampleOnce err=%v", err)
	}

	r := p.Store().Load()
	if !r.Valid || !r.Fresh() || r.Temperature != 25.0 || r.Humidity != 45.5 || r.CO2 != 812 {
		t.Fatalf("unexpected reading: %+v", r)
	}
	if r.SampledAt.IsZero() || r.Misses != 0 || r.LastErrorCode != 0 {
		t.Fatalf("unexpected bookkeeping: %+v", r)
	}
}

func TestSampleOnce_FailuresKeepLastGood(t *testing.T) {
	drv := &fakeCO2Driver{fakeDriver: &fakeDriver{ready: true, temp: 25.0, rh: 45.5}, co2: 812}
	obs := &recordingObserver{}
	p := newTestPoller(t, testConfig(), drv, obs)

	if err := p.SampleOnce(); err != nil {
		t.Fatalf("SampleOnce err=%v", err)
	}
	good := p.Store().Load()

	drv.set(true, errors.New("bus fault"))
	for i := 1; i <= 5; i++ {
		if err := p.SampleOnce(); err == nil {
			t.Fatalf("cycle %d: expected failure", i)
		}

		r := p.Store().Load()
		if r.Temperature != good.Temperature || r.Humidity != good.Humidity || r.CO2 != good.CO2 {
			t.Fatalf("cycle %d: values changed: %+v", i, r)
		}
		if !r.SampledAt.Equal(good.SampledAt) {
			t.Fatalf("cycle %d: sample time changed", i)
		}
		if r.Misses != i || r.LastErrorCode != 1 {
			t.Fatalf("cycle %d: misses=%d code=%d", i, r.Misses, r.LastErrorCode)
		}
		if wantStale := i >= 3; r.Stale != wantStale {
			t.Fatalf("cycle %d: stale=%v want %v", i, r.Stale, wantStale)
		}
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.results) != 6 || obs.results[0] != ResultOK || obs.results[5] != ResultError {
		t.Fatalf("unexpected results: %v", obs.results)
	}
	if len(obs.stale) != 1 || !obs.stale[0] {
		t.Fatalf("expected one stale transition, got %v", obs.stale)
	}
}

func TestSampleOnce_NoDataAndRecovery(t *testing.T) {
	drv := &fakeCO2Driver{fakeDriver: &fakeDriver{ready: false, temp: 20, rh: 30}, co2: 500}
	c := testConfig()
	c.StaleAfter = 2
	obs := &recordingObserver{}
	p := newTestPoller(t, c, drv, obs)

	for i := 0; i < 2; i++ {
		if err := p.SampleOnce(); !errors.Is(err, ErrNoData) {
			t.Fatalf("expected ErrNoData, got %v", err)
		}
	}
	r := p.Store().Load()
	if r.Valid || !r.Stale || r.LastErrorCode != CodeNoData || r.Temperature != 0 {
		t.Fatalf("unexpected reading before first sample: %+v", r)
	}

	drv.set(true, nil)
	if err := p.SampleOnce(); err != nil {
		t.Fatalf("SampleOnce err=%v", err)
	}
	r = p.Store().Load()
	if !r.Fresh() || r.Temperature != 20 || r.CO2 != 500 {
		t.Fatalf("unexpected reading after recovery: %+v", r)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.stale) != 2 || !obs.stale[0] || obs.stale[1] {
		t.Fatalf("unexpected stale transitions: %v", obs.stale)
	}
	if obs.results[0] != ResultNoData {
		t.Fatalf("expected no_data result, got %v", obs.results[0])
	}
}

func TestSampleOnce_CO2Failure(t *testing.T) {
	drv := &fakeCO2Driver{fakeDriver: &fakeDriver{ready: true, temp: 20, rh: 30}, co2Err: errors.New("crc")}
	p := newTestPoller(t, testConfig(), drv, nil)

	if err := p.SampleOnce(); err == nil {
		t.Fatalf("expected co2 failure")
	}
	if r := p.Store().Load(); r.Valid || r.Temperature != 0 {
		t.Fatalf("partial sample committed: %+v", r)
	}
}

func TestSampleOnce_ReadTimeoutNeverOverlaps(t *testing.T) {
	block := make(chan struct{})
	drv := &fakeCO2Driver{fakeDriver: &fakeDriver{ready: true, temp: 22, rh: 33, block: block}, co2: 700}
	c := testConfig()
	c.ReadTimeout = 20 * time.Millisecond
	p := newTestPoller(t, c, drv, nil)

	if err := p.SampleOnce(); !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("expected ErrReadTimeout, got %v", err)
	}
	// bus still busy: fail fast without a second driver call
	if err := p.SampleOnce(); !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("expected ErrReadTimeout, got %v", err)
	}
	drv.mu.Lock()
	calls := drv.calls
	drv.block = nil
	drv.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected 1 driver call while busy, got %d", calls)
	}
	if r := p.Store().Load(); r.LastErrorCode != CodeReadTimeout || r.Misses != 2 {
		t.Fatalf("unexpected reading: %+v", r)
	}

	close(block)
	// let the stuck read finish so the next cycle can drain it
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := p.SampleOnce(); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("poller did not recover after the bus freed up")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if r := p.Store().Load(); !r.Fresh() || r.Temperature != 22 {
		t.Fatalf("unexpected reading after recovery: %+v", r)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	drv := &fakeCO2Driver{fakeDriver: &fakeDriver{ready: true, temp: 21, rh: 41}, co2: 650}
	c := testConfig()
	c.Interval = 5 * time.Millisecond
	p := newTestPoller(t, c, drv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !p.Store().Load().Valid {
		if time.Now().After(deadline) {
			t.Fatalf("no sample taken")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestBuild_SimDriver(t *testing.T) {
	sc := cfg.SensorConfig{
		ID:               "sim1",
		Driver:           cfg.DriverSim,
		SampleIntervalMs: 1000,
		ReadTimeoutMs:    100,
		StaleAfter:       3,
		CO2:              true,
		Sim:              cfg.SimConfig{Temperature: 19, Humidity: 50, CO2: 900},
	}

	p, closer, err := Build(sc, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("Build err=%v", err)
	}
	defer closer()

	if err := p.SampleOnce(); err != nil {
		t.Fatalf("SampleOnce err=%v", err)
	}
	if r := p.Store().Load(); !r.Valid || r.CO2 < 800 || r.CO2 > 1000 {
		t.Fatalf("unexpected sim reading: %+v", r)
	}
}

func TestBuild_UnknownDriver(t *testing.T) {
	if _, _, err := Build(cfg.SensorConfig{ID: "x", Driver: "bogus"}, zerolog.Nop(), nil); err == nil {
		t.Fatalf("expected error")
	}
}
