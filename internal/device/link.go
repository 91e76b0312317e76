// Package device owns the transports to the Ohmpilot: the Modbus TCP
// register link and the HTTP command endpoint.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/ohmpilot-controller/internal/register"
)

// maxRegistersPerWrite is the Modbus limit for FC16.
const maxRegistersPerWrite = 123

// Link is the register transport contract.
// Every error returned is a *Failure.
type Link interface {
	Connect(ctx context.Context) error
	ReadRegisters(ctx context.Context, addr, count uint16) ([]uint16, error)
	WriteRegisters(ctx context.Context, addr uint16, words []uint16) error
	Close() error
}

// connHandler is the connection lifecycle part of a goburrow client handler.
type connHandler interface {
	Connect() error
	Close() error
}

// registerClient is the subset of modbus.Client the link uses.
type registerClient interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// Config is minimal transport config.
type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
}

// ModbusLink implements Link over Modbus TCP.
// Operations are serialized; each one acquires a short-lived connection and
// releases it on every exit path.
type ModbusLink struct {
	mu       sync.Mutex
	endpoint string
	handler  connHandler
	client   registerClient
	open     bool
}

// NewModbusLink builds a link. It does not dial; call Connect.
func NewModbusLink(cfg Config) (*ModbusLink, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("device link: endpoint required")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("device link: timeout must be > 0")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	return newLink(cfg.Endpoint, h, modbus.NewClient(h)), nil
}

func newLink(endpoint string, h connHandler, c registerClient) *ModbusLink {
	return &ModbusLink{
		endpoint: endpoint,
		handler:  h,
		client:   c,
	}
}

// Endpoint returns the host:port the link talks to.
func (l *ModbusLink) Endpoint() string {
	return l.endpoint
}

// Connect verifies the endpoint accepts connections and enables the link.
func (l *ModbusLink) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &Failure{Kind: KindTransport, Op: "connect", Msg: "cancelled", Err: err}
	}
	if err := l.handler.Connect(); err != nil {
		return classify("connect", 0, err)
	}
	_ = l.handler.Close()

	l.open = true
	return nil
}

// Close disables the link. Further operations fail until Connect.
func (l *ModbusLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.open = false
	return l.handler.Close()
}

// ReadRegisters reads count holding registers starting at addr.
func (l *ModbusLink) ReadRegisters(ctx context.Context, addr, count uint16) ([]uint16, error) {
	if count == 0 || count > register.MaxRegistersPerRead {
		return nil, &Failure{
			Kind: KindProtocol, Op: "read", Addr: addr,
			Msg: fmt.Sprintf("quantity %d out of range", count),
		}
	}

	var words []uint16
	err := l.withConn(ctx, "read", addr, func() error {
		raw, err := l.client.ReadHoldingRegisters(addr, count)
		if err != nil {
			return err
		}
		if len(raw) != int(count)*2 {
			return &Failure{
				Kind: KindDecode, Op: "read", Addr: addr,
				Msg: fmt.Sprintf("payload %d bytes, want %d", len(raw), int(count)*2),
			}
		}
		words = register.WordsFromBytes(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return words, nil
}

// WriteRegisters writes words as holding registers starting at addr.
func (l *ModbusLink) WriteRegisters(ctx context.Context, addr uint16, words []uint16) error {
	if len(words) == 0 || len(words) > maxRegistersPerWrite {
		return &Failure{
			Kind: KindProtocol, Op: "write", Addr: addr,
			Msg: fmt.Sprintf("quantity %d out of range", len(words)),
		}
	}

	return l.withConn(ctx, "write", addr, func() error {
		_, err := l.client.WriteMultipleRegisters(addr, uint16(len(words)), register.BytesFromWords(words))
		return err
	})
}

// withConn runs fn with the connection held. The connection is closed on
// every path out of fn, including panics.
func (l *ModbusLink) withConn(ctx context.Context, op string, addr uint16, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.open {
		return &Failure{Kind: KindTransport, Op: op, Addr: addr, Msg: "link not connected"}
	}
	if err := ctx.Err(); err != nil {
		return &Failure{Kind: KindTransport, Op: op, Addr: addr, Msg: "cancelled", Err: err}
	}

	if err := l.handler.Connect(); err != nil {
		return classify(op, addr, err)
	}
	defer func() { _ = l.handler.Close() }()

	if err := fn(); err != nil {
		return classify(op, addr, err)
	}
	return nil
}
