// internal/probe/client.go
package probe

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/modbus-sensorbridge/internal/status"
)

// Client is a single TCP connection to one bridge.
// It serializes requests; the goburrow client is not safe for concurrent use.
type Client struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
}

// Values is one decoded holding register range.
type Values struct {
	Temperature float64
	Humidity    float64
	CO2         uint16
	HasCO2      bool
}

// Status is one decoded sensor status block.
type Status struct {
	Health            uint16
	LastErrorCode     uint16
	SecondsSinceGood  uint16
	ConsecutiveMisses uint16
	DeviceName        string
	Fresh             bool
}

func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("probe: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

func (c *Client) ReadHolding(addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(raw, int(qty))
}

func (c *Client) ReadInput(addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.client.ReadInputRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackRegisters(raw, int(qty))
}

func (c *Client) ReadDiscrete(addr, qty uint16) ([]bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.client.ReadDiscreteInputs(addr, qty)
	if err != nil {
		return nil, err
	}
	return unpackBits(raw, int(qty))
}

// ReadValues reads one sensor's holding range in a single request.
func (c *Client) ReadValues(base uint16, co2 bool) (Values, error) {
	qty := uint16(2)
	if co2 {
		qty = 3
	}
	regs, err := c.ReadHolding(base, qty)
	if err != nil {
		return Values{}, err
	}

	v := Values{
		Temperature: DecodeTenths(regs[0]),
		Humidity:    DecodeTenths(regs[1]),
		HasCO2:      co2,
	}
	if co2 {
		v.CO2 = regs[2]
	}
	return v, nil
}

// ReadStatus reads the status block and freshness bit of one slot.
func (c *Client) ReadStatus(slot uint16) (Status, error) {
	regs, err := c.ReadInput(slot*status.SlotsPerSensor, status.SlotsPerSensor)
	if err != nil {
		return Status{}, err
	}
	bits, err := c.ReadDiscrete(slot, 1)
	if err != nil {
		return Status{}, err
	}

	return Status{
		Health:            regs[status.SlotHealthCode],
		LastErrorCode:     regs[status.SlotLastErrorCode],
		SecondsSinceGood:  regs[status.SlotSecondsSinceGood],
		ConsecutiveMisses: regs[status.SlotConsecutiveMisses],
		DeviceName:        status.DecodeDeviceName(regs[status.SlotDeviceNameStart : status.SlotDeviceNameEnd+1]),
		Fresh:             bits[0],
	}, nil
}

// DecodeTenths reverses the one-decimal fixed-point encoding.
func DecodeTenths(r uint16) float64 {
	return float64(r) / 10
}

func unpackRegisters(raw []byte, qty int) ([]uint16, error) {
	if len(raw) != 2*qty {
		return nil, fmt.Errorf("probe: expected %d register bytes, got %d", 2*qty, len(raw))
	}
	out := make([]uint16, qty)
	for i := range out {
		out[i] = uint16(raw[2*i])<<8 | uint16(raw[2*i+1])
	}
	return out, nil
}

func unpackBits(raw []byte, qty int) ([]bool, error) {
	if len(raw) != (qty+7)/8 {
		return nil, fmt.Errorf("probe: expected %d bit bytes, got %d", (qty+7)/8, len(raw))
	}
	out := make([]bool, qty)
	for i := range out {
		out[i] = raw[i/8]&(1<<uint(i%8)) != 0
	}
	return out, nil
}
