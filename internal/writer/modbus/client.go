// Package modbus is the mirror's Modbus TCP client.
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/ohmpilot-controller/internal/register"
)

// EndpointClient is one TCP connection to a mirror endpoint.
// It serializes requests because it mutates SlaveId per write.
// A failed write drops the connection; the next write redials.
type EndpointClient struct {
	mu        sync.Mutex
	handler   *modbus.TCPClientHandler
	client    modbus.Client
	connected bool
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer modbus: endpoint required")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("writer modbus: timeout must be > 0")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout

	return &EndpointClient{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return c.handler.Close()
}

func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if len(regs) == 0 || len(regs) > 123 {
		return fmt.Errorf("writer modbus: invalid register count %d", len(regs))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		if err := c.handler.Connect(); err != nil {
			return err
		}
		c.connected = true
	}

	c.handler.SlaveId = unitID

	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), register.BytesFromWords(regs))
	if err != nil {
		var me *modbus.ModbusError
		if !errors.As(err, &me) {
			// transport died; redial next time
			_ = c.handler.Close()
			c.connected = false
		}
	}
	return err
}
