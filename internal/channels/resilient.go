package channels

import (
	"context"

	"github.com/copp1723/ccl-3-final-sub003/platform/breaker"
)

// FallbackReceipt is the deterministic acknowledgment a channel breaker
// returns while open. Callers treat it as a normal send result so the
// pipeline keeps moving through a provider outage.
var FallbackReceipt = Receipt{ExternalID: "", Status: "simulated"}

// resilientDriver wraps a driver's Send in a circuit breaker. Generation is
// already guarded by the breaker around the shared Generator.
type resilientDriver struct {
	Driver
	br *breaker.Breaker[Receipt]
}

// WithBreaker wraps the driver's delivery path in the given breaker.
func WithBreaker(d Driver, br *breaker.Breaker[Receipt]) Driver {
	return &resilientDriver{Driver: d, br: br}
}

func (r *resilientDriver) Send(ctx context.Context, msg OutboundMessage) (Receipt, error) {
	return r.br.Execute(ctx, func(ctx context.Context) (Receipt, error) {
		return r.Driver.Send(ctx, msg)
	})
}
