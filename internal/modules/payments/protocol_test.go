package payments

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codenerix/payments/internal/config"
)

func TestRegistryDispatchesByProtocol(t *testing.T) {
	cfg := &config.Config{Meta: config.Meta{URL: "http://pay.example.com"}}
	logger := slog.Default()

	registry := NewRegistry(
		NewPaypalAdapter(cfg, logger),
		NewRedsysAdapter(cfg, logger),
		NewRedsysXMLAdapter(cfg, logger),
		NewYeepayAdapter(cfg, logger),
	)

	for _, protocol := range config.Protocols {
		adapter, ok := registry.Get(protocol)
		require.True(t, ok, "protocol %s", protocol)
		assert.Equal(t, protocol, adapter.Protocol())
	}

	_, ok := registry.Get("stripe")
	assert.False(t, ok)
}
