package gateway

import (
	"context"
	"time"

	"github.com/IsVohi/OrderFlow-sub001/pkg/utils"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// Gateway is the payment provider boundary. The stub implementation
// simulates a round trip; swapping in a real provider client keeps the
// breaker and the service code untouched.
type Gateway interface {
	Charge(ctx context.Context, orderID string, amount int64, currency string) (string, error)
	Refund(ctx context.Context, transactionID string, amount int64) error
}

type stubGateway struct {
	breaker *gobreaker.CircuitBreaker
	latency time.Duration
}

func NewStubGateway() Gateway {
	return &stubGateway{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "payment-gateway",
			Timeout: 10 * time.Second,
		}),
		latency: 50 * time.Millisecond,
	}
}

func (g *stubGateway) Charge(ctx context.Context, orderID string, amount int64, currency string) (string, error) {
	return utils.ExecuteWithBreaker(g.breaker, func() (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.latency):
		}

		return uuid.New().String(), nil
	})
}

func (g *stubGateway) Refund(ctx context.Context, transactionID string, amount int64) error {
	_, err := utils.ExecuteWithBreaker(g.breaker, func() (struct{}, error) {
		select {
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		case <-time.After(g.latency):
		}

		return struct{}{}, nil
	})

	return err
}
