package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codenerix/payments/internal/config"
)

func TestAllowedAction(t *testing.T) {
	tests := []struct {
		protocol string
		action   string
		want     string
	}{
		{config.ProtocolPaypal, "confirm", ""},
		{config.ProtocolPaypal, "cancel", ""},
		{config.ProtocolPaypal, "success", errBadPaypalAction},
		{config.ProtocolRedsys, "confirm", ""},
		{config.ProtocolRedsys, "success", ""},
		{config.ProtocolRedsys, "approve", errBadRedsysAction},
		{config.ProtocolRedsysXML, "success", ""},
		{config.ProtocolRedsysXML, "approve", errBadRedsysAction},
		{config.ProtocolYeepay, "cancel", ""},
		{config.ProtocolYeepay, "success", ""},
		{config.ProtocolYeepay, "approve", errBadYeepayAction},
		{"stripe", "confirm", errUnknownProtocol},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, allowedAction(tt.protocol, tt.action), "%s/%s", tt.protocol, tt.action)
	}
}
