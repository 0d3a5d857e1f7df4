package payments

import (
	"context"
	"encoding/json"
	"net/url"
	"time"
)

// Approval is what a caller needs to send the payer to the gateway: either a
// redirect URL (PayPal) or a form POST target with hidden fields (Redsys,
// Yeepay).
type Approval struct {
	URL  string            `json:"url,omitempty"`
	Form map[string]string `json:"form,omitempty"`
}

// CreateResult carries the gateway round trip of a payment creation. Request
// and Answer are persisted verbatim for audit even when the gateway declines.
type CreateResult struct {
	Request     json.RawMessage
	RequestDate time.Time
	Answer      json.RawMessage
	AnswerDate  time.Time
	Ref         string
}

// ConfirmInput is the browser return leg as received: parsed query values
// plus the raw query string for signature schemes that sign the literal
// query (Yeepay).
type ConfirmInput struct {
	Data     url.Values
	RawQuery string
}

// ConfirmResult tells the confirm service what the adapter verified and what
// still has to happen inside the settlement transaction.
type ConfirmResult struct {
	// Ref is the payer reference established during the confirmation
	// (PayPal's payer_id).
	Ref string

	// Settle means the confirmation itself authorises capture and the
	// service must execute it (PayPal).
	Settle bool

	// RequireSettled means the confirmation is only valid once a successful
	// answer exists; the service copies that answer's ref onto the
	// confirmation (Redsys, Yeepay).
	RequireSettled bool
}

// SuccessResult is the outcome of verifying a gateway notification.
type SuccessResult struct {
	// Ref is the value to persist on the answer row. On a declined Redsys
	// operation this is the gateway response code, kept with Err set.
	Ref string

	// Request replaces the raw inbound payload in the audit row when the
	// adapter had to decode it first (Yeepay's encrypted envelope).
	Request json.RawMessage

	// Extra is merged into the wire answer ("errorcode" and friends).
	Extra map[string]any

	Err *PaymentError
}

// Adapter implements one gateway protocol. Adapters hold no database state;
// everything they need arrives as the payment snapshot plus the inbound
// data, which keeps the verification logic testable in isolation.
type Adapter interface {
	Protocol() string

	// CreateRequest performs the gateway side of payment creation. The
	// returned CreateResult is persisted even when err is non-nil.
	CreateRequest(ctx context.Context, pr *PaymentRequest) (CreateResult, error)

	// Approval builds the redirect/form the payer must be sent to.
	Approval(pr *PaymentRequest) (Approval, error)

	// Confirm verifies the browser confirmation leg.
	Confirm(ctx context.Context, pr *PaymentRequest, in ConfirmInput) (ConfirmResult, error)

	// Cancel performs gateway side effects of a cancellation. A failure is
	// reported but never blocks the local cancellation.
	Cancel(ctx context.Context, pr *PaymentRequest) error

	// Execute captures funds for protocols where the browser confirmation
	// triggers settlement. Only PayPal implements it; the others are never
	// asked to.
	Execute(ctx context.Context, pr *PaymentRequest, payerRef string) (CreateResult, error)

	// Success verifies a server-to-server gateway notification.
	Success(ctx context.Context, pr *PaymentRequest, data url.Values) SuccessResult
}

// Registry maps protocol keys to adapters. Dispatch goes through it instead
// of switching on protocol strings at every call site.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Protocol()] = a
	}
	return r
}

func (r *Registry) Get(protocol string) (Adapter, bool) {
	a, ok := r.adapters[protocol]
	return a, ok
}
