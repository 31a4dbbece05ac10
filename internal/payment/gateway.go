package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"storefront/internal/util"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrGatewayUnavailable is returned when the gateway cannot be asked
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// GatewayOptions tunes the remote verifier
type GatewayOptions struct {
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HalfOpenProbes   uint32
}

type gatewayPayment struct {
	Status string  `json:"status"`
	Amount float64 `json:"amount"`
}

// GatewayVerifier asks the payment provider whether a checkout was captured
type GatewayVerifier struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[*gatewayPayment]
	logger  *zap.Logger
}

func NewGatewayVerifier(baseURL string, opts GatewayOptions) *GatewayVerifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.HalfOpenProbes == 0 {
		opts.HalfOpenProbes = 3
	}

	logger := util.GetLogger()
	cb := gobreaker.NewCircuitBreaker[*gatewayPayment](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: opts.HalfOpenProbes,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// a declined payment is a healthy gateway answer
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRejected)
		},
	})

	return &GatewayVerifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: opts.Timeout},
		cb:      cb,
		logger:  logger,
	}
}

func (v *GatewayVerifier) Name() string { return "gateway" }

func (v *GatewayVerifier) Verify(ctx context.Context, c Confirmation) error {
	p, err := v.cb.Execute(func() (*gatewayPayment, error) {
		return v.fetch(ctx, c.CheckoutID)
	})
	if err != nil {
		if errors.Is(err, ErrRejected) {
			return err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		return err
	}

	if p.Status != "captured" && p.Status != "paid" {
		return fmt.Errorf("%w: gateway reports %q", ErrRejected, p.Status)
	}
	if math.Abs(p.Amount-c.Amount) > 0.005 {
		return fmt.Errorf("%w: captured %s, expected %s", ErrRejected, formatAmount(p.Amount), formatAmount(c.Amount))
	}
	return nil
}

func (v *GatewayVerifier) fetch(ctx context.Context, checkoutID string) (*gatewayPayment, error) {
	endpoint := v.baseURL + "/payments/" + url.PathEscape(checkoutID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: gateway has no payment for checkout", ErrRejected)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: gateway returned %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: gateway returned %d", ErrRejected, resp.StatusCode)
	}

	var p gatewayPayment
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return &p, nil
}
