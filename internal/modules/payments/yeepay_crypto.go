package payments

import (
	"crypto"
	"crypto/aes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
)

// ParseYeepayPrivateKey decodes a PKCS#8 RSA private key given as bare
// base64 DER, the way merchant keys are configured.
func ParseYeepayPrivateKey(b64 string) (*rsa.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("yeepay private key: %w", err)
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("yeepay private key: %w", err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("yeepay private key: not an RSA key")
	}
	return priv, nil
}

// ParseYeepayPublicKey decodes a PKIX RSA public key given as bare base64
// DER.
func ParseYeepayPublicKey(b64 string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("yeepay public key: %w", err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("yeepay public key: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("yeepay public key: not an RSA key")
	}
	return pub, nil
}

// SignRSA produces the YOP signature of content: RSA PKCS#1 v1.5 over
// SHA-256, URL-safe base64 with the padding stripped.
func SignRSA(content string, priv *rsa.PrivateKey) (string, error) {
	digest := sha256.Sum256([]byte(content))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("yop sign: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sig), nil
}

// VerifyRSA checks a YOP signature produced by SignRSA.
func VerifyRSA(content, signature string, pub *rsa.PublicKey) bool {
	sig, err := decodeBase64URL(signature)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(content))
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
}

// decodeBase64URL decodes URL-safe base64 whose padding may have been
// stripped or mangled in transit.
func decodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	return base64.RawURLEncoding.DecodeString(s)
}

// YeepayEnvelope encrypts and decrypts the four part digital envelope the
// notification endpoint receives: encrypted AES key, encrypted payload and
// the fixed AES / SHA256 algorithm markers joined by '$'. The payload is
// "data$signature" where the signature covers data alone.
type YeepayEnvelope struct {
	// Private decrypts the AES key and signs outbound envelopes.
	Private *rsa.PrivateKey
	// Public verifies the payload signature of inbound envelopes.
	Public *rsa.PublicKey
}

// Decrypt opens an envelope and returns the verified payload.
func (e *YeepayEnvelope) Decrypt(content string) (string, error) {
	parts := strings.Split(content, "$")
	if len(parts) != 4 {
		return "", fmt.Errorf("yeepay envelope: expected 4 parts, got %d", len(parts))
	}

	encKey, err := decodeBase64URL(parts[0])
	if err != nil {
		return "", fmt.Errorf("yeepay envelope: key encoding: %w", err)
	}
	aesKey, err := rsa.DecryptPKCS1v15(rand.Reader, e.Private, encKey)
	if err != nil {
		return "", fmt.Errorf("yeepay envelope: key decrypt: %w", err)
	}

	encData, err := decodeBase64URL(parts[1])
	if err != nil {
		return "", fmt.Errorf("yeepay envelope: data encoding: %w", err)
	}
	plain, err := aesECBDecrypt(aesKey, encData)
	if err != nil {
		return "", fmt.Errorf("yeepay envelope: %w", err)
	}

	payload := strings.SplitN(string(stripPKCS7(plain)), "$", 2)
	if len(payload) != 2 {
		return "", fmt.Errorf("yeepay envelope: payload has no signature")
	}
	data, signature := payload[0], payload[1]

	if !VerifyRSA(data, signature, e.Public) {
		return "", fmt.Errorf("yeepay envelope: signature verification failed")
	}
	return data, nil
}

// Encrypt builds an envelope that Decrypt can open: used by the mock
// notification tooling. signPriv signs the payload and encPub wraps the AES
// key, mirroring the gateway's side of the exchange.
func (e *YeepayEnvelope) Encrypt(content string, signPriv *rsa.PrivateKey, encPub *rsa.PublicKey) (string, error) {
	signature, err := SignRSA(content, signPriv)
	if err != nil {
		return "", err
	}

	aesKey := make([]byte, 16)
	if _, err := rand.Read(aesKey); err != nil {
		return "", fmt.Errorf("yeepay envelope: aes key: %w", err)
	}

	enc, err := aesECBEncrypt(aesKey, padPKCS7([]byte(content+"$"+signature), aes.BlockSize))
	if err != nil {
		return "", fmt.Errorf("yeepay envelope: %w", err)
	}

	encKey, err := rsa.EncryptPKCS1v15(rand.Reader, encPub, aesKey)
	if err != nil {
		return "", fmt.Errorf("yeepay envelope: key encrypt: %w", err)
	}

	parts := []string{
		base64.RawURLEncoding.EncodeToString(encKey),
		base64.RawURLEncoding.EncodeToString(enc),
		"AES",
		"SHA256",
	}
	return strings.Join(parts, "$"), nil
}

func aesECBDecrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not block aligned")
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		block.Decrypt(out[i:], data[i:])
	}
	return out, nil
}

func aesECBEncrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("plaintext is not block aligned")
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		block.Encrypt(out[i:], data[i:])
	}
	return out, nil
}

func padPKCS7(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	pad := make([]byte, n)
	for i := range pad {
		pad[i] = byte(n)
	}
	return append(data, pad...)
}

func stripPKCS7(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return data
	}
	for _, b := range data[len(data)-n:] {
		if b != byte(n) {
			return data
		}
	}
	return data[:len(data)-n]
}
