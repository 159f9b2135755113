package identity

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/idbridge/internal/config"
	"github.com/vyrodovalexey/idbridge/internal/faults"
	"github.com/vyrodovalexey/idbridge/internal/observability"
)

// maxErrorBodyBytes bounds how much of an upstream error body is kept
// in fault messages.
const maxErrorBodyBytes = 512

// errUpstreamStatus marks a 5xx response inside the breaker so that
// server errors count as failures without losing the response.
var errUpstreamStatus = errors.New("upstream server error")

// transport is the shared HTTP plumbing under both upstream clients.
// It owns the http.Client, the optional circuit breaker, and the
// translation of transport-level failures into faults.
type transport struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
}

func newTransport(cfg *config.IdentityConfig, logger observability.Logger) *transport {
	httpTransport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		httpTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // User-configurable
	}

	t := &transport{
		client: &http.Client{
			Timeout:   cfg.GetTimeout(),
			Transport: httpTransport,
		},
		logger: logger,
	}

	if cfg.Breaker.IsEnabled() {
		maxFailures := cfg.Breaker.GetMaxFailures()
		t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "identity-upstream",
			Timeout: cfg.Breaker.GetOpenTimeout(),
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					observability.String("breaker", name),
					observability.String("from", from.String()),
					observability.String("to", to.String()))
			},
		})
	}

	return t
}

// do executes the request. When the breaker is open the upstream is
// not contacted and the call fails fast with an unavailable fault.
func (t *transport) do(op string, req *http.Request) (int, []byte, error) {
	resp, err := t.roundTrip(req)
	if err != nil && !errors.Is(err, errUpstreamStatus) {
		return 0, nil, t.translateTransportError(op, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return 0, nil, faults.Wrap(faults.KindUnavailable, op, readErr)
	}

	return resp.StatusCode, body, nil
}

func (t *transport) roundTrip(req *http.Request) (*http.Response, error) {
	if t.breaker == nil {
		return t.client.Do(req)
	}

	result, err := t.breaker.Execute(func() (interface{}, error) {
		resp, doErr := t.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// Server errors trip the breaker; client errors do not.
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errUpstreamStatus
		}
		return resp, nil
	})

	resp, _ := result.(*http.Response)
	if resp != nil {
		return resp, err
	}
	return nil, err
}

// translateTransportError maps connection-level failures to faults.
func (t *transport) translateTransportError(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return faults.Wrapf(faults.KindUnavailable, op, err, "circuit breaker open")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return faults.Wrap(faults.KindUnavailable, op, err)
	}
	// url.Error covers DNS, dial, and TLS failures.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return faults.Wrap(faults.KindUnavailable, op, err)
	}
	return faults.Wrap(faults.KindInternal, op, err)
}

// statusFault maps a non-2xx response to a fault. Token-shaped
// operations pass tokenOp=true so that 400/401 rejections surface as
// invalid-token rather than unauthenticated.
func statusFault(op string, status int, body []byte, tokenOp bool) error {
	msg := errorBodyMessage(body)

	switch {
	case status == http.StatusNotFound:
		return faults.New(faults.KindNotFound, op, msg)
	case tokenOp && (status == http.StatusBadRequest || status == http.StatusUnauthorized):
		return faults.New(faults.KindInvalidToken, op, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return faults.New(faults.KindUnauthenticated, op, msg)
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout:
		return faults.New(faults.KindUnavailable, op, fmt.Sprintf("upstream returned %d: %s", status, msg))
	default:
		return faults.New(faults.KindInternal, op, fmt.Sprintf("upstream returned %d: %s", status, msg))
	}
}

// errorBodyMessage extracts the provider's error description from a
// response body, falling back to a truncated raw body.
func errorBodyMessage(body []byte) string {
	var parsed struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorMessage     string `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.ErrorDescription != "":
			return parsed.ErrorDescription
		case parsed.ErrorMessage != "":
			return parsed.ErrorMessage
		case parsed.Error != "":
			return parsed.Error
		}
	}

	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		s = s[:maxErrorBodyBytes]
	}
	return s
}

// postForm sends a form-encoded POST and returns status and body.
func (t *transport) postForm(ctx context.Context, op, endpoint string, form url.Values, bearer string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, faults.Wrap(faults.KindInternal, op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	return t.do(op, req)
}

// doJSON sends a request with an optional JSON body and bearer token.
func (t *transport) doJSON(ctx context.Context, op, method, endpoint, bearer string, payload any) (int, []byte, error) {
	req, err := newJSONRequest(ctx, op, method, endpoint, bearer, payload)
	if err != nil {
		return 0, nil, err
	}
	return t.do(op, req)
}

// newJSONRequest builds a request with an optional JSON body and
// bearer token.
func newJSONRequest(ctx context.Context, op, method, endpoint, bearer string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, faults.Wrap(faults.KindInternal, op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, faults.Wrap(faults.KindInternal, op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req, nil
}

// readAllBody drains and returns a response body.
func readAllBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// decodeJSON unmarshals a response body into out, mapping malformed
// payloads to internal faults.
func decodeJSON(op string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return faults.Wrapf(faults.KindInternal, op, err, "malformed upstream response")
	}
	return nil
}
