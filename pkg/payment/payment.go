package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type Status string

const (
	StatusPaid    Status = "paid"
	StatusNotPaid Status = "not_paid"
	StatusUnknown Status = "unknown"
)

// Confirmed is the fail-safe reading of a status: only an explicit paid counts.
func (s Status) Confirmed() bool {
	return s == StatusPaid
}

// StatusChecker answers whether the checkout behind reference has been paid.
type StatusChecker interface {
	CheckStatus(ctx context.Context, reference string) (Status, error)
}

// checkoutSessions is the slice of the stripe client used here.
type checkoutSessions interface {
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type StripeChecker struct {
	sessions checkoutSessions
}

func NewStripeChecker(secretKey string) *StripeChecker {
	sc := &client.API{}
	sc.Init(secretKey, nil)

	return &StripeChecker{sessions: sc.CheckoutSessions}
}

func (s *StripeChecker) CheckStatus(ctx context.Context, reference string) (Status, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return StatusNotPaid, nil
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := s.sessions.Get(reference, params)
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to fetch checkout session: %w", err)
	}

	switch session.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return StatusPaid, nil
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		return StatusNotPaid, nil
	default:
		return StatusUnknown, nil
	}
}

// Disabled is used when no payment provider is configured. Every lookup is unknown.
type Disabled struct{}

func (Disabled) CheckStatus(ctx context.Context, reference string) (Status, error) {
	return StatusUnknown, nil
}
