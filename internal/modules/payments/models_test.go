package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReverseSentinels(t *testing.T) {
	// Persisted column values; the action endpoint switches on them.
	assert.Equal(t, "autorender", ReverseAutorender)
	assert.Equal(t, "reverse", ReverseJSON)
}

func TestPaymentRequestIsPaid(t *testing.T) {
	ref := "123456"
	empty := ""
	pr := &PaymentRequest{}

	assert.False(t, pr.IsPaid(nil))
	assert.False(t, pr.IsPaid([]PaymentAnswer{{Error: true, Ref: &ref}}))
	assert.False(t, pr.IsPaid([]PaymentAnswer{{Ref: &empty}}))
	assert.False(t, pr.IsPaid([]PaymentAnswer{{}}))
	assert.True(t, pr.IsPaid([]PaymentAnswer{{Error: true}, {Ref: &ref}}))
}
