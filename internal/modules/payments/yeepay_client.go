package payments

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	yopAlgorithm       = "YOP-RSA2048-SHA256"
	yopProtocolVersion = "yop-auth-v2"
	yopExpiredSeconds  = "1800"
	yopSignedHeaders   = "x-yop-appkey;x-yop-date;x-yop-request-id"
)

// yeepayGateway is the slice of the YOP API the adapter needs. Tests swap in
// a fake.
type yeepayGateway interface {
	Post(ctx context.Context, api string, params map[string]string) (map[string]any, error)
}

// yopClient talks to the Yeepay open platform, signing every request with
// the merchant's ISV private key.
type yopClient struct {
	appKey   string
	endpoint string
	private  *rsa.PrivateKey
	http     *http.Client
}

func newYOPClient(appKey, endpoint string, private *rsa.PrivateKey) *yopClient {
	return &yopClient{
		appKey:   appKey,
		endpoint: strings.TrimRight(endpoint, "/"),
		private:  private,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// yopEscape matches the URL escaping the gateway canonicalizes with: spaces
// become %20 and slashes stay literal.
func yopEscape(s string) string {
	e := url.QueryEscape(s)
	e = strings.ReplaceAll(e, "+", "%20")
	return strings.ReplaceAll(e, "%2F", "/")
}

// canonicalQuery renders the parameters sorted by key, escaped the YOP way.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(yopEscape(params[k]))
	}
	return b.String()
}

// yopTimestamp is basic ISO 8601 in UTC without sub-second precision.
func yopTimestamp(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// authHeaders builds the YOP authorization header set for one request.
func (c *yopClient) authHeaders(api string, params map[string]string) (map[string]string, error) {
	date := yopTimestamp(time.Now())
	requestID := uuid.NewString()

	canonicalHeaders := "x-yop-appkey:" + yopEscape(c.appKey) + "\n" +
		"x-yop-date:" + yopEscape(date) + "\n" +
		"x-yop-request-id:" + yopEscape(requestID)

	authStr := yopProtocolVersion + "/" + c.appKey + "/" + date + "/" + yopExpiredSeconds
	canonicalRequest := authStr + "\n" +
		http.MethodPost + "\n" +
		api + "\n" +
		canonicalQuery(params) + "\n" +
		canonicalHeaders

	signature, err := SignRSA(canonicalRequest, c.private)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"Authorization":    yopAlgorithm + " " + authStr + "/" + yopSignedHeaders + "/" + signature + "$SHA256",
		"x-yop-request-id": requestID,
		"x-yop-date":       date,
		"x-yop-appkey":     c.appKey,
	}, nil
}

func (c *yopClient) Post(ctx context.Context, api string, params map[string]string) (map[string]any, error) {
	headers, err := c.authHeaders(api, params)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+api, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yop post %s: %w", api, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yop post %s: %w", api, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("yop post %s: status %d: %s", api, resp.StatusCode, body)
	}

	var answer map[string]any
	if err := json.Unmarshal(body, &answer); err != nil {
		return nil, fmt.Errorf("yop post %s: decode answer: %w", api, err)
	}
	return answer, nil
}
