// Package upstream wraps outbound HTTP calls with a circuit breaker.
// Calls are attempted exactly once; the breaker only fails fast while a
// dependency keeps erroring.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// maxBodyBytes bounds how much of an upstream body is buffered.
const maxBodyBytes = 32 << 20

var (
	ErrCircuitOpen  = errors.New("circuit breaker open")
	ErrBodyTooLarge = errors.New("upstream body exceeds size limit")
	errNoHTTPClient = errors.New("http client not configured")
	errServerError  = errors.New("server error")
)

// Response is a fully buffered upstream response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Caller executes requests against one upstream dependency.
type Caller struct {
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	maxBody int64
}

// NewCaller builds a Caller with its own breaker. The breaker trips after
// five consecutive failures and probes again after a minute.
func NewCaller(name string, client *http.Client) *Caller {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     1 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Caller{client: client, circuit: cb, maxBody: maxBodyBytes}
}

// Do sends a GET to rawURL and buffers the body. Non-2xx statuses are not
// errors; the caller decides. 5xx responses count against the breaker.
func (c *Caller) Do(ctx context.Context, rawURL string) (Response, error) {
	if c.client == nil {
		return Response{}, errNoHTTPClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Response{}, err
	}

	var out Response
	_, err = c.circuit.Execute(func() (interface{}, error) {
		resp, execErr := c.client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
		if readErr != nil {
			return nil, readErr
		}
		if int64(len(body)) > c.maxBody {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, c.maxBody)
		}

		out = Response{StatusCode: resp.StatusCode, Body: body}
		if resp.StatusCode >= 500 {
			return nil, errServerError
		}
		return nil, nil
	})

	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, errServerError):
		return out, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return Response{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	default:
		return Response{}, err
	}
}

// State exposes the breaker state for health reporting.
func (c *Caller) State() string {
	return c.circuit.State().String()
}
