package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const keyLength = 64

// Signer handles HMAC-SHA256 signing for Binance futures API requests
type Signer struct {
	apiKey     string
	secretKey  string
	recvWindow int64
}

// NewSigner creates a signer after validating the credential format
func NewSigner(apiKey, secretKey string) (*Signer, error) {
	if err := validateKey("api key", apiKey); err != nil {
		return nil, err
	}
	if err := validateKey("secret key", secretKey); err != nil {
		return nil, err
	}

	return &Signer{
		apiKey:     apiKey,
		secretKey:  secretKey,
		recvWindow: 5000,
	}, nil
}

// NewSignerWithRecvWindow creates a signer with a custom recv window
func NewSignerWithRecvWindow(apiKey, secretKey string, recvWindow int64) (*Signer, error) {
	signer, err := NewSigner(apiKey, secretKey)
	if err != nil {
		return nil, err
	}
	signer.recvWindow = recvWindow
	return signer, nil
}

// validateKey enforces Binance's key format: exactly 64 alphanumeric characters
func validateKey(name, key string) error {
	if len(key) != keyLength {
		return fmt.Errorf("%s must be exactly %d characters, got %d", name, keyLength, len(key))
	}
	for _, c := range key {
		isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !isAlnum {
			return fmt.Errorf("%s must contain only alphanumeric characters", name)
		}
	}
	return nil
}

// ValidateBaseURL checks that an API endpoint URL is usable
func ValidateBaseURL(baseURL string) error {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return fmt.Errorf("base URL must start with http:// or https://")
	}
	return nil
}

// APIKey returns the API key for the X-MBX-APIKEY header
func (s *Signer) APIKey() string {
	return s.apiKey
}

// RecvWindow returns the recv window value
func (s *Signer) RecvWindow() int64 {
	return s.recvWindow
}

// Sign generates the HMAC-SHA256 signature over the encoded parameters
func (s *Signer) Sign(params url.Values) string {
	h := hmac.New(sha256.New, []byte(s.secretKey))
	h.Write([]byte(params.Encode()))
	return hex.EncodeToString(h.Sum(nil))
}

// SignedQuery returns a copy of params with timestamp, recvWindow and
// signature set, ready to be sent to a signed endpoint
func (s *Signer) SignedQuery(params url.Values) url.Values {
	signed := make(url.Values, len(params)+3)
	for key, values := range params {
		for _, value := range values {
			signed.Add(key, value)
		}
	}

	// Timestamp must be fresh on every attempt
	signed.Set("timestamp", fmt.Sprintf("%d", time.Now().UnixMilli()))

	if signed.Get("recvWindow") == "" {
		signed.Set("recvWindow", fmt.Sprintf("%d", s.recvWindow))
	}

	signed.Set("signature", s.Sign(signed))

	return signed
}

// VerifySignature reports whether a signature matches the given parameters
func (s *Signer) VerifySignature(params url.Values, signature string) bool {
	expected := s.Sign(params)
	return hmac.Equal([]byte(expected), []byte(signature))
}
