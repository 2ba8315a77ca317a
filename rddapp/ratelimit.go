package rddapp

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// pacedTransport delays requests so a run stays under the per-user Drive
// quota. It never retries.
type pacedTransport struct {
	limiter *rate.Limiter
	base    http.RoundTripper
}

// newPacedTransport wraps base, or http.DefaultTransport when base is nil.
func newPacedTransport(base http.RoundTripper, perSecond float64, burst int) *pacedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &pacedTransport{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		base:    base,
	}
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("waiting for request slot: %w", err)
	}
	return t.base.RoundTrip(req)
}
