// Package throttle spaces outgoing HTTP calls so remote stores never see
// more than one request per interval.
package throttle

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval matches the pause the stores tolerate between calls.
const DefaultInterval = 3 * time.Second

// Transport is an http.RoundTripper that waits on a shared limiter before
// each request.
type Transport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

// New wraps next. A zero or negative every disables throttling.
func New(next http.RoundTripper, every time.Duration) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if every > 0 {
		lim = rate.NewLimiter(rate.Every(every), 1)
	}
	return &Transport{next: next, limiter: lim}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

// Client returns an http.Client using a throttled transport.
func Client(timeout, every time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: New(nil, every)}
}
