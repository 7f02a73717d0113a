package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

type fakeSessions struct {
	session *stripe.CheckoutSession
	err     error
	gotID   string
}

func (f *fakeSessions) Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.gotID = id
	return f.session, f.err
}

func TestStripeCheckerStatuses(t *testing.T) {
	cases := []struct {
		name   string
		status stripe.CheckoutSessionPaymentStatus
		want   Status
	}{
		{"paid", stripe.CheckoutSessionPaymentStatusPaid, StatusPaid},
		{"no payment required", stripe.CheckoutSessionPaymentStatusNoPaymentRequired, StatusPaid},
		{"unpaid", stripe.CheckoutSessionPaymentStatusUnpaid, StatusNotPaid},
		{"unexpected", stripe.CheckoutSessionPaymentStatus("weird"), StatusUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeSessions{session: &stripe.CheckoutSession{PaymentStatus: tc.status}}
			checker := &StripeChecker{sessions: fake}

			got, err := checker.CheckStatus(context.Background(), " cs_test_123 ")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, "cs_test_123", fake.gotID)
		})
	}
}

func TestStripeCheckerFailureIsUnknown(t *testing.T) {
	checker := &StripeChecker{sessions: &fakeSessions{err: errors.New("network down")}}

	got, err := checker.CheckStatus(context.Background(), "cs_test_1")
	require.Error(t, err)
	assert.Equal(t, StatusUnknown, got)
	assert.False(t, got.Confirmed())
}

func TestStripeCheckerEmptyReference(t *testing.T) {
	fake := &fakeSessions{}
	checker := &StripeChecker{sessions: fake}

	got, err := checker.CheckStatus(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, StatusNotPaid, got)
	assert.Empty(t, fake.gotID)
}
