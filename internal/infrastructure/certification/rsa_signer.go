package certification

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"software.sslmate.com/src/go-pkcs12"
)

// minRSABits is the smallest modulus AGT accepts for software certification keys.
const minRSABits = 1024

// RSASigner signs with RSASSA-PKCS1-v1_5 over SHA-256.
type RSASigner struct {
	key        *rsa.PrivateKey
	keyVersion string
}

var _ fiscal.Signer = (*RSASigner)(nil)

// NewRSASigner wraps an already parsed key.
func NewRSASigner(key *rsa.PrivateKey, keyVersion string) (*RSASigner, error) {
	if key == nil {
		return nil, ErrInvalidPrivateKey
	}
	if key.N.BitLen() < minRSABits {
		return nil, fmt.Errorf("%w: %d-bit modulus is below %d bits", ErrInvalidPrivateKey, key.N.BitLen(), minRSABits)
	}
	if keyVersion == "" {
		keyVersion = "1"
	}
	return &RSASigner{key: key, keyVersion: keyVersion}, nil
}

// NewRSASignerFromPEM parses a PKCS#8 or PKCS#1 PEM private key.
func NewRSASignerFromPEM(pemData []byte, keyVersion string) (*RSASigner, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, ErrInvalidPrivateKey
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 format
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
		}
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrInvalidPrivateKey
	}
	return NewRSASigner(rsaKey, keyVersion)
}

// NewRSASignerFromPKCS12 decodes the private key of a PKCS#12 bundle.
func NewRSASignerFromPKCS12(pfxData []byte, password, keyVersion string) (*RSASigner, error) {
	key, _, _, err := pkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: bundle holds a %T key", ErrInvalidPrivateKey, key)
	}
	return NewRSASigner(rsaKey, keyVersion)
}

// Sign implements fiscal.Signer.
func (s *RSASigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := sha256.Sum256(payload)
	return rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
}

// KeyVersion implements fiscal.Signer.
func (s *RSASigner) KeyVersion() string {
	return s.keyVersion
}

// PublicKey returns the verification key, published to AGT on certification.
func (s *RSASigner) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

// Verify checks a signature produced by Sign.
func (s *RSASigner) Verify(payload, signature []byte) error {
	digest := sha256.Sum256(payload)
	return rsa.VerifyPKCS1v15(&s.key.PublicKey, crypto.SHA256, digest[:], signature)
}
