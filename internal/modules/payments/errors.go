package payments

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Code is the numeric payment error taxonomy. The numbers are a wire
// contract: they surface to gateways and callers as PCxx/PSxx strings, so
// they must never be renumbered.
type Code int

const (
	CodeUnknownProtocol      Code = 1
	CodeEnvironmentMismatch  Code = 2
	CodeVerificationMismatch Code = 3
	CodeNotApproved          Code = 4
	CodeNotFound             Code = 5
	CodeMissingInformation   Code = 6
	CodeAlreadyProcessed     Code = 7
	CodeUnknownPlatform      Code = 8
	CodeSignatureInvalid     Code = 9
	CodeAlreadyConfirmed     Code = 10
	CodeMalformedRequest     Code = 11
)

// PaymentError carries the numeric code plus a human readable detail. The
// detail is persisted on the audit row and only shown to callers in debug
// mode.
type PaymentError struct {
	Code Code
	Msg  string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment error %d: %s", e.Code, e.Msg)
}

func newError(code Code, format string, args ...any) *PaymentError {
	return &PaymentError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// AsPaymentError unwraps err into a *PaymentError when possible.
func AsPaymentError(err error) (*PaymentError, bool) {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// errorTxt renders the {"error": N, "errortxt": S} JSON stored in the
// error_txt audit columns.
func errorTxt(e *PaymentError) *string {
	raw, _ := json.Marshal(map[string]any{"error": int(e.Code), "errortxt": e.Msg})
	s := string(raw)
	return &s
}
