package payments

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRSAKey generates a throwaway key pair and its bare base64 DER forms.
func testRSAKey(t *testing.T) (*rsa.PrivateKey, string, string) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)

	return priv,
		base64.StdEncoding.EncodeToString(privDER),
		base64.StdEncoding.EncodeToString(pubDER)
}

func TestParseYeepayKeys(t *testing.T) {
	priv, privB64, pubB64 := testRSAKey(t)

	parsedPriv, err := ParseYeepayPrivateKey(privB64)
	require.NoError(t, err)
	assert.True(t, priv.Equal(parsedPriv))

	parsedPub, err := ParseYeepayPublicKey(pubB64)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(parsedPub))

	_, err = ParseYeepayPrivateKey("not base64!!!")
	assert.Error(t, err)
	_, err = ParseYeepayPublicKey(base64.StdEncoding.EncodeToString([]byte("garbage")))
	assert.Error(t, err)
}

func TestSignVerifyRSA(t *testing.T) {
	priv, _, _ := testRSAKey(t)

	sig, err := SignRSA("hello world", priv)
	require.NoError(t, err)
	assert.NotContains(t, sig, "=")

	assert.True(t, VerifyRSA("hello world", sig, &priv.PublicKey))
	assert.False(t, VerifyRSA("hello world!", sig, &priv.PublicKey))
	assert.False(t, VerifyRSA("hello world", "bm90LXNpZ25lZA", &priv.PublicKey))

	// Padding left on the wire must not break verification.
	assert.True(t, VerifyRSA("hello world", sig+"==", &priv.PublicKey))
}

func TestYeepayEnvelopeRoundTrip(t *testing.T) {
	merchantPriv, _, _ := testRSAKey(t)
	gatewayPriv, _, _ := testRSAKey(t)

	// Inbound envelopes are signed by the gateway and wrapped for the
	// merchant key.
	envelope := &YeepayEnvelope{Private: merchantPriv, Public: &gatewayPriv.PublicKey}

	content := `{"orderId":"0000007","status":"SUCCESS"}`
	sealed, err := envelope.Encrypt(content, gatewayPriv, &merchantPriv.PublicKey)
	require.NoError(t, err)
	require.Len(t, strings.Split(sealed, "$"), 4)

	opened, err := envelope.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, content, opened)
}

func TestYeepayEnvelopeTamperedPayload(t *testing.T) {
	merchantPriv, _, _ := testRSAKey(t)
	gatewayPriv, _, _ := testRSAKey(t)
	envelope := &YeepayEnvelope{Private: merchantPriv, Public: &gatewayPriv.PublicKey}

	sealed, err := envelope.Encrypt(`{"status":"SUCCESS"}`, gatewayPriv, &merchantPriv.PublicKey)
	require.NoError(t, err)

	// Signing with a different key than the configured public key must be
	// rejected even when the envelope itself decrypts.
	forged, err := envelope.Encrypt(`{"status":"SUCCESS"}`, merchantPriv, &merchantPriv.PublicKey)
	require.NoError(t, err)
	_, err = envelope.Decrypt(forged)
	assert.ErrorContains(t, err, "signature verification failed")

	// Structural damage is rejected as well.
	_, err = envelope.Decrypt("only$three$parts")
	assert.Error(t, err)
	_, err = envelope.Decrypt("a$" + strings.SplitN(sealed, "$", 2)[1])
	assert.Error(t, err)
}

func TestPKCS7RoundTrip(t *testing.T) {
	for _, input := range []string{"", "a", "exactly-16-bytes", "something a fair bit longer than one block"} {
		padded := padPKCS7([]byte(input), 16)
		assert.Zero(t, len(padded)%16)
		assert.Equal(t, input, string(stripPKCS7(padded)))
	}
}
