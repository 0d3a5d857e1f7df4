package payments

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYopEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"with space", "with%20space"},
		{"a/b", "a/b"},
		{"a&b=c", "a%26b%3Dc"},
		{"中文", "%E4%B8%AD%E6%96%87"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, yopEscape(tt.in), "input %q", tt.in)
	}
}

func TestCanonicalQuerySortsKeys(t *testing.T) {
	got := canonicalQuery(map[string]string{
		"orderId":    "0000007",
		"merchantNo": "10012345",
		"notifyUrl":  "http://pay.example.com/a b",
	})
	assert.Equal(t, "merchantNo=10012345&notifyUrl=http%3A//pay.example.com/a%20b&orderId=0000007", got)

	assert.Empty(t, canonicalQuery(nil))
}

func TestYopTimestamp(t *testing.T) {
	at := time.Date(2024, 3, 15, 9, 30, 45, 0, time.FixedZone("CST", 8*3600))
	assert.Equal(t, "20240315T013045Z", yopTimestamp(at))
}

func TestAuthHeadersSignCanonicalRequest(t *testing.T) {
	priv, _, _ := testRSAKey(t)
	client := newYOPClient("app_10012345", "https://openapi.yeepay.com", priv)

	params := map[string]string{"orderId": "0000007", "merchantNo": "10012345"}
	headers, err := client.authHeaders(yeepayOrderAPI, params)
	require.NoError(t, err)

	auth := headers["Authorization"]
	require.True(t, strings.HasPrefix(auth, yopAlgorithm+" "+yopProtocolVersion+"/app_10012345/"))
	require.True(t, strings.HasSuffix(auth, "$SHA256"))

	// Rebuild the canonical request from the emitted headers and check the
	// signature against it.
	date := headers["x-yop-date"]
	requestID := headers["x-yop-request-id"]
	require.NotEmpty(t, date)
	require.NotEmpty(t, requestID)

	canonicalHeaders := "x-yop-appkey:" + yopEscape("app_10012345") + "\n" +
		"x-yop-date:" + yopEscape(date) + "\n" +
		"x-yop-request-id:" + yopEscape(requestID)
	authStr := yopProtocolVersion + "/app_10012345/" + date + "/" + yopExpiredSeconds
	canonicalRequest := authStr + "\n" +
		http.MethodPost + "\n" +
		yeepayOrderAPI + "\n" +
		canonicalQuery(params) + "\n" +
		canonicalHeaders

	parts := strings.Split(auth, "/")
	signature := strings.TrimSuffix(parts[len(parts)-1], "$SHA256")
	assert.True(t, VerifyRSA(canonicalRequest, signature, &priv.PublicKey))
}
