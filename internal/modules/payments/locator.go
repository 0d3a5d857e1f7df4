package payments

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NewLocator builds the public payment handle: SHA-256 over a fresh UUID and
// 16 random bytes, hex encoded. It must be unguessable, so both inputs come
// from the CSPRNG.
func NewLocator() (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("locator salt: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(uuid.NewString()))
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// EncodeOrderRef renders an order number as a seven character uppercase
// base36 string, zero padded on the left. Gateways with short order fields
// (Redsys) require the fixed width.
func EncodeOrderRef(order uint64) string {
	ref := strings.ToUpper(strconv.FormatUint(order, 36))
	if len(ref) < 7 {
		ref = strings.Repeat("0", 7-len(ref)) + ref
	}
	return ref
}

// ReturnURL resolves the caller's reverse template for one action. Anything
// that is not an absolute URL falls back to the built-in action endpoint.
func ReturnURL(baseURL, reverse, locator, action string) string {
	if strings.HasPrefix(reverse, "http://") || strings.HasPrefix(reverse, "https://") {
		u := strings.ReplaceAll(reverse, "{action}", action)
		return strings.ReplaceAll(u, "{locator}", locator)
	}
	return strings.TrimRight(baseURL, "/") + "/payments/action/" + locator + "/" + action
}
