package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
meta:
  real: false
  url: http://pay.example.com
  debug: true
platforms:
  mybank:
    protocol: redsys
    name: My Bank
    merchant_code: "999008881"
    auth_key: c2VjcmV0
  paypal_eu:
    protocol: paypal
    id: client-id
    secret: client-secret
    real: false
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.False(t, cfg.Meta.Real)
	assert.True(t, cfg.Meta.Debug)
	assert.Equal(t, "http://pay.example.com", cfg.Meta.URL)

	p, ok := cfg.Platform("mybank")
	require.True(t, ok)
	assert.Equal(t, ProtocolRedsys, p.Protocol)
	assert.Equal(t, "999008881", p.MerchantCode)

	p, ok = cfg.Platform("paypal_eu")
	require.True(t, ok)
	require.NotNil(t, p.Real)
	assert.False(t, *p.Real)

	_, ok = cfg.Platform("missing")
	assert.False(t, ok)
}

func TestParseRequiresURL(t *testing.T) {
	_, err := Parse([]byte("meta:\n  real: true\n"))
	assert.ErrorContains(t, err, "meta.url is required")
}

func TestParseRejectsMetaPlatform(t *testing.T) {
	doc := `
meta:
  url: http://pay.example.com
platforms:
  meta:
    protocol: redsys
`
	_, err := Parse([]byte(doc))
	assert.ErrorContains(t, err, "reserved key")
}

func TestParseRejectsUnknownProtocol(t *testing.T) {
	doc := `
meta:
  url: http://pay.example.com
platforms:
  stripe_eu:
    protocol: stripe
`
	_, err := Parse([]byte(doc))
	assert.ErrorContains(t, err, `unknown protocol "stripe"`)
}

func TestPlatformNeverReturnsMeta(t *testing.T) {
	cfg := &Config{Platforms: map[string]Platform{}}
	_, ok := cfg.Platform("meta")
	assert.False(t, ok)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payments.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	t.Setenv("PAYMENTS_CONFIG", path)
	t.Setenv("PAYMENTS_REAL", "true")
	t.Setenv("PAYMENTS_URL", "https://live.example.com")
	t.Setenv("PAYMENTS_DEBUG", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Meta.Real)
	assert.Equal(t, "https://live.example.com", cfg.Meta.URL)
	assert.False(t, cfg.Meta.Debug)
}

func TestLoadRejectsBadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payments.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	t.Setenv("PAYMENTS_CONFIG", path)
	t.Setenv("PAYMENTS_REAL", "maybe")

	_, err := Load()
	assert.ErrorContains(t, err, "PAYMENTS_REAL")
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("PAYMENTS_CONFIG", filepath.Join(t.TempDir(), "absent.yml"))
	_, err := Load()
	assert.Error(t, err)
}
