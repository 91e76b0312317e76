package device

import (
	"net"
	"strconv"
)

// Endpoint identifies one Ohmpilot. It is immutable; reconfiguration
// replaces the endpoint together with the link built from it.
type Endpoint struct {
	Host         string
	RegisterPort int
	CommandPort  int
	UnitID       uint8
}

// RegisterAddr returns host:port of the Modbus TCP server.
func (e Endpoint) RegisterAddr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.RegisterPort))
}

// CommandURL returns the base URL of the HTTP command endpoint.
func (e Endpoint) CommandURL() string {
	return "http://" + net.JoinHostPort(e.Host, strconv.Itoa(e.CommandPort))
}
