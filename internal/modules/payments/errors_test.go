package payments

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsPaymentError(t *testing.T) {
	pe := newError(CodeNotApproved, "declined by %s", "gateway")

	got, ok := AsPaymentError(pe)
	require.True(t, ok)
	assert.Equal(t, CodeNotApproved, got.Code)
	assert.Equal(t, "declined by gateway", got.Msg)

	wrapped := fmt.Errorf("processing: %w", pe)
	got, ok = AsPaymentError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeNotApproved, got.Code)

	_, ok = AsPaymentError(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorTxtRendersAuditJSON(t *testing.T) {
	pe := newError(CodeSignatureInvalid, "Invalid sign")

	txt := errorTxt(pe)
	require.NotNil(t, txt)
	assert.JSONEq(t, `{"error": 9, "errortxt": "Invalid sign"}`, *txt)
}
