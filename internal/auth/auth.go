// Package auth signs Kalshi API requests with RSA-PSS.
package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Header names sent with every signed request.
const (
	HeaderKey       = "KALSHI-ACCESS-KEY"
	HeaderTimestamp = "KALSHI-ACCESS-TIMESTAMP"
	HeaderSignature = "KALSHI-ACCESS-SIGNATURE"
)

// Credentials holds the API key and private key for signing requests.
type Credentials struct {
	KeyID      string          // API key ID from Kalshi dashboard
	PrivateKey *rsa.PrivateKey // RSA private key for signing

	now func() time.Time
}

// NewCredentials wraps an already loaded key.
func NewCredentials(keyID string, key *rsa.PrivateKey) *Credentials {
	return &Credentials{KeyID: keyID, PrivateKey: key, now: time.Now}
}

// LoadCredentials loads credentials from key ID and private key file path.
func LoadCredentials(keyID, privateKeyPath string) (*Credentials, error) {
	if keyID == "" {
		return nil, fmt.Errorf("API key ID is required")
	}
	if privateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	privateKey, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return NewCredentials(keyID, privateKey), nil
}

// LoadPrivateKey loads an RSA private key from a PEM file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return ParsePrivateKey(data)
}

// ParsePrivateKey decodes a PEM encoded PKCS#8 or PKCS#1 RSA key.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA private key")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return rsaKey, nil
}

// SignRequest generates authentication headers for a request. path is the
// full URL path without the query string, e.g. "/trade-api/v2/portfolio/orders".
func (c *Credentials) SignRequest(method, path string) (map[string]string, error) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	timestampMs := now().UnixMilli()

	signature, err := c.generateSignature(timestampMs, method, path)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		HeaderKey:       c.KeyID,
		HeaderTimestamp: strconv.FormatInt(timestampMs, 10),
		HeaderSignature: signature,
	}, nil
}

// generateSignature signs timestamp_ms + method + path.
func (c *Credentials) generateSignature(timestampMs int64, method, path string) (string, error) {
	if c.PrivateKey == nil {
		return "", fmt.Errorf("sign message: no private key")
	}

	message := strconv.FormatInt(timestampMs, 10) + method + path
	hashed := sha256.Sum256([]byte(message))

	signature, err := rsa.SignPSS(
		rand.Reader,
		c.PrivateKey,
		crypto.SHA256,
		hashed[:],
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash},
	)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}

	return base64.StdEncoding.EncodeToString(signature), nil
}
