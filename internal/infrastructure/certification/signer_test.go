//go:debug rsa1024min=0

package certification

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/infrastructure/config"
	"github.com/kwanza/fiscal/internal/infrastructure/sequence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"software.sslmate.com/src/go-pkcs12"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func rsaTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return testKey
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func pkcs8PEM(t *testing.T, key *rsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func pkcs12Bundle(t *testing.T, key *rsa.PrivateKey, password string) []byte {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Kwanza Fiscal Test", Country: []string{"AO"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pfx, err := pkcs12.Modern.Encode(key, cert, nil, password)
	require.NoError(t, err)
	return pfx
}

const canonical = "2026-03-14;2026-03-14T10:00:00Z;FT 2026/000001;51300.00;"

func TestRSASigner_SignVerify(t *testing.T) {
	signer, err := NewRSASigner(rsaTestKey(t), "2")
	require.NoError(t, err)
	assert.Equal(t, "2", signer.KeyVersion())

	sig, err := signer.Sign(context.Background(), []byte(canonical))
	require.NoError(t, err)
	assert.Len(t, sig, 256)
	assert.NoError(t, signer.Verify([]byte(canonical), sig))
	assert.Error(t, signer.Verify([]byte(canonical+"tampered"), sig))
}

func TestRSASigner_RejectsWeakKey(t *testing.T) {
	weak, err := rsa.GenerateKey(rand.Reader, 512)
	require.NoError(t, err)

	_, err = NewRSASigner(weak, "1")
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = NewRSASigner(nil, "1")
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestRSASigner_CancelledContext(t *testing.T) {
	signer, err := NewRSASigner(rsaTestKey(t), "")
	require.NoError(t, err)
	assert.Equal(t, "1", signer.KeyVersion())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = signer.Sign(ctx, []byte(canonical))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadRSASigner(t *testing.T) {
	key := rsaTestKey(t)

	t.Run("PKCS8 PEM", func(t *testing.T) {
		signer, err := LoadRSASigner(writeFile(t, "key.pem", pkcs8PEM(t, key)), "", "1")
		require.NoError(t, err)
		assert.Equal(t, key.PublicKey.N, signer.PublicKey().N)
	})

	t.Run("PKCS1 PEM", func(t *testing.T) {
		data := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
		_, err := LoadRSASigner(writeFile(t, "key.pem", data), "", "1")
		require.NoError(t, err)
	})

	t.Run("PKCS12 bundle", func(t *testing.T) {
		path := writeFile(t, "agt.p12", pkcs12Bundle(t, key, "s3cret"))
		signer, err := LoadRSASigner(path, "s3cret", "3")
		require.NoError(t, err)
		assert.Equal(t, key.PublicKey.N, signer.PublicKey().N)
		assert.Equal(t, "3", signer.KeyVersion())
	})

	t.Run("PKCS12 wrong password", func(t *testing.T) {
		path := writeFile(t, "agt.pfx", pkcs12Bundle(t, key, "s3cret"))
		_, err := LoadRSASigner(path, "wrong", "1")
		assert.ErrorIs(t, err, ErrInvalidPrivateKey)
	})

	t.Run("not a key", func(t *testing.T) {
		_, err := LoadRSASigner(writeFile(t, "key.pem", []byte("garbage")), "", "1")
		assert.ErrorIs(t, err, ErrInvalidPrivateKey)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRSASigner(filepath.Join(t.TempDir(), "absent.pem"), "", "1")
		assert.Error(t, err)
	})
}

func TestHMACSigner(t *testing.T) {
	_, err := NewHMACSigner(nil, "1")
	assert.ErrorIs(t, err, ErrEmptySecret)

	a, err := NewHMACSigner([]byte("secret"), "")
	require.NoError(t, err)
	b, err := NewHMACSigner([]byte("other"), "1")
	require.NoError(t, err)

	sig1, err := a.Sign(context.Background(), []byte(canonical))
	require.NoError(t, err)
	sig2, err := a.Sign(context.Background(), []byte(canonical))
	require.NoError(t, err)
	sig3, err := b.Sign(context.Background(), []byte(canonical))
	require.NoError(t, err)

	assert.Len(t, sig1, 32)
	assert.Equal(t, sig1, sig2)
	assert.NotEqual(t, sig1, sig3)
	assert.Equal(t, "1", a.KeyVersion())
}

func TestNewSignerFromConfig(t *testing.T) {
	t.Run("hmac in development falls back to the development secret", func(t *testing.T) {
		signer, err := NewSignerFromConfig(config.FiscalConfig{Signer: config.SignerHMAC}, false, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &HMACSigner{}, signer)
	})

	t.Run("hmac refused in production", func(t *testing.T) {
		_, err := NewSignerFromConfig(config.FiscalConfig{Signer: config.SignerHMAC, HMACSecret: "x"}, true, nil)
		assert.Error(t, err)
	})

	t.Run("rsa from file", func(t *testing.T) {
		path := writeFile(t, "key.pem", pkcs8PEM(t, rsaTestKey(t)))
		signer, err := NewSignerFromConfig(config.FiscalConfig{Signer: config.SignerRSA, KeyPath: path, KeyVersion: "7"}, true, nil)
		require.NoError(t, err)
		assert.Equal(t, "7", signer.KeyVersion())
	})

	t.Run("unknown signer", func(t *testing.T) {
		_, err := NewSignerFromConfig(config.FiscalConfig{Signer: "ecdsa"}, false, nil)
		assert.Error(t, err)
	})
}

func TestRSASigner_CertifiesDocuments(t *testing.T) {
	signer, err := NewRSASigner(rsaTestKey(t), "1")
	require.NoError(t, err)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	certifier := fiscal.NewCertifier(signer, fiscal.WithValidationCode("AGT1"), fiscal.WithClock(func() time.Time { return now }))

	bundle, err := certifier.Certify(context.Background(), fiscal.NewReservedAllocator(sequence.NewMemoryAllocator()), fiscal.CertificationRequest{
		TenantID:    uuid.New(),
		Type:        fiscal.DocumentTypeInvoice,
		IssueDate:   now,
		TotalAmount: decimal.RequireFromString("51300"),
	})
	require.NoError(t, err)

	sig, err := base64.StdEncoding.DecodeString(bundle.DigitalSignature)
	require.NoError(t, err)
	payload := fiscal.CanonicalHashInput(now, bundle.CertifiedAt, bundle.DocumentNumber, decimal.RequireFromString("51300"), "")
	assert.NoError(t, signer.Verify([]byte(payload), sig))
	assert.Equal(t, "AGT1FT2026-1", bundle.ATCUD)
}
