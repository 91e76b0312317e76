package device

import (
	"context"

	"github.com/tamzrod/ohmpilot-controller/internal/register"
)

// Probe validates an endpoint: the link must connect and a status read
// must succeed. It returns the status code read.
func Probe(ctx context.Context, link Link) (uint16, error) {
	if err := link.Connect(ctx); err != nil {
		return 0, err
	}

	words, err := link.ReadRegisters(ctx, register.AddrStatus, register.StatusWords)
	if err != nil {
		return 0, err
	}
	return register.DecodeStatus(words[0]), nil
}
