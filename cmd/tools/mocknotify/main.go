package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/codenerix/payments/internal/modules/payments"
)

// mocknotify posts a signed Redsys settlement notification to a local
// payments server, the way the SIS endpoint would after a test card payment.
func main() {
	target := flag.String("url", "http://localhost:8080", "Payments server base URL")
	locator := flag.String("locator", "", "Payment locator (required)")
	order := flag.String("order", "", "Order reference as sent to the gateway (required)")
	authKey := flag.String("auth-key", os.Getenv("REDSYS_AUTH_KEY"), "Base64 merchant auth key")
	amount := flag.String("amount", "", "Amount in minor units, e.g. 5000 for 50.00 (required)")
	authorisation := flag.String("authorisation", "123456", "Authorisation code; empty simulates a decline")
	errorCode := flag.String("error-code", "SIS0093", "SIS error code used when authorisation is empty")
	dryRun := flag.Bool("dry-run", false, "Only print the form, don't send")

	flag.Parse()

	if *locator == "" || *order == "" || *amount == "" {
		fmt.Fprintf(os.Stderr, "Error: -locator, -order and -amount are required\n")
		os.Exit(1)
	}
	if *authKey == "" {
		fmt.Fprintf(os.Stderr, "Error: auth key not provided and REDSYS_AUTH_KEY not set\n")
		os.Exit(1)
	}

	key, err := base64.StdEncoding.DecodeString(*authKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding auth key: %v\n", err)
		os.Exit(1)
	}

	params := map[string]string{
		"Ds_Order":  *order,
		"Ds_Amount": *amount,
	}
	if *authorisation != "" {
		params["Ds_AuthorisationCode"] = *authorisation
	} else {
		params["Ds_ErrorCode"] = *errorCode
	}

	raw, err := json.Marshal(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling parameters: %v\n", err)
		os.Exit(1)
	}
	paramsB64 := base64.StdEncoding.EncodeToString(raw)

	signature, err := payments.RedsysSignature(key, *order, paramsB64, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing parameters: %v\n", err)
		os.Exit(1)
	}

	form := url.Values{}
	form.Set("Ds_SignatureVersion", "HMAC_SHA256_V1")
	form.Set("Ds_MerchantParameters", paramsB64)
	form.Set("Ds_Signature", signature)

	endpoint := strings.TrimRight(*target, "/") + "/payments/action/" + url.PathEscape(*locator) + "/success"

	fmt.Printf("Ds_MerchantParameters: %s\n", paramsB64)
	fmt.Printf("Ds_Signature: %s\n", signature)

	if *dryRun {
		fmt.Println("\n[DRY RUN] Not sending request")
		return
	}

	fmt.Printf("\nSending to %s...\n", endpoint)
	resp, err := http.PostForm(endpoint, form)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %d\n", resp.StatusCode)
	fmt.Printf("Response: %s\n", string(respBody))

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
