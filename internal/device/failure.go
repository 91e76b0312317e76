package device

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/goburrow/modbus"
)

// Kind classifies a Failure. Callers treat every kind the same way;
// the kind exists for logs and metrics.
type Kind string

const (
	KindTransport Kind = "transport" // connect, timeout, socket error
	KindProtocol  Kind = "protocol"  // explicit device error reply
	KindDecode    Kind = "decode"    // short or malformed payload
)

// Failure is the single error type returned by every Link and command call.
type Failure struct {
	Kind Kind
	Op   string
	Addr uint16
	Msg  string
	Err  error
}

func (f *Failure) Error() string {
	s := fmt.Sprintf("%s %s", f.Op, f.Kind)
	if f.Addr != 0 {
		s += fmt.Sprintf(" addr=%d", f.Addr)
	}
	if f.Msg != "" {
		s += ": " + f.Msg
	}
	if f.Err != nil {
		s += ": " + f.Err.Error()
	}
	return s
}

func (f *Failure) Unwrap() error { return f.Err }

// Code returns a best-effort uint16 code: the Modbus exception code for
// protocol failures, 1 otherwise.
func (f *Failure) Code() uint16 {
	var me *modbus.ModbusError
	if errors.As(f.Err, &me) {
		return uint16(me.ExceptionCode)
	}
	return 1
}

// KindOf returns the failure kind of err, or "" when err is not a Failure.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// classify wraps a raw transport/library error into a Failure.
func classify(op string, addr uint16, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return &Failure{Kind: KindProtocol, Op: op, Addr: addr, Err: err}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return &Failure{Kind: KindTransport, Op: op, Addr: addr, Err: err}
	}

	// goburrow reports framing and length problems as plain errors.
	if isFramingError(err) {
		return &Failure{Kind: KindDecode, Op: op, Addr: addr, Err: err}
	}

	return &Failure{Kind: KindTransport, Op: op, Addr: addr, Err: err}
}

func isFramingError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "does not match") ||
		strings.Contains(msg, "data size") ||
		strings.Contains(msg, "length in response")
}
