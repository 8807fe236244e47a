// Package certification provides the fiscal.Signer implementations used to
// sign the canonical hash input of certified documents.
//
// Two signers exist:
//   - RSASigner: PKCS#1 v1.5 over SHA-256 with the AGT-registered private key,
//     loaded from a PKCS#12 bundle or a PEM file.
//   - HMACSigner: HMAC-SHA256 keyed by a configured secret. It produces stable
//     signatures for development and tests and is refused in production.
package certification

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/infrastructure/config"
	"go.uber.org/zap"
)

var (
	// ErrInvalidPrivateKey is returned when key material cannot be parsed as an RSA key
	ErrInvalidPrivateKey = errors.New("certification: invalid RSA private key")
	// ErrEmptySecret is returned when the HMAC signer has no secret
	ErrEmptySecret = errors.New("certification: hmac secret is empty")
)

// developmentSecret keys the HMAC signer when no secret is configured outside production.
const developmentSecret = "kwanza-fiscal-development-secret"

// NewSignerFromConfig builds the signer selected by fiscal.signer.
func NewSignerFromConfig(cfg config.FiscalConfig, production bool, logger *zap.Logger) (fiscal.Signer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Signer {
	case config.SignerRSA:
		signer, err := LoadRSASigner(cfg.KeyPath, cfg.KeyPassword, cfg.KeyVersion)
		if err != nil {
			return nil, err
		}
		logger.Info("RSA document signer loaded",
			zap.String("key_path", cfg.KeyPath),
			zap.String("key_version", cfg.KeyVersion),
			zap.Int("key_bits", signer.key.N.BitLen()),
		)
		return signer, nil
	case config.SignerHMAC, "":
		if production {
			return nil, fmt.Errorf("certification: hmac signer is not allowed in production")
		}
		secret := cfg.HMACSecret
		if secret == "" {
			logger.Warn("fiscal.hmac_secret not set, using the development secret")
			secret = developmentSecret
		}
		return NewHMACSigner([]byte(secret), cfg.KeyVersion)
	default:
		return nil, fmt.Errorf("certification: unknown signer %q", cfg.Signer)
	}
}

// LoadRSASigner reads the key at path. Files ending in .p12 or .pfx are decoded
// as PKCS#12 bundles with password; anything else is treated as PEM.
func LoadRSASigner(path, password, keyVersion string) (*RSASigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("certification: failed to read private key file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".p12", ".pfx":
		return NewRSASignerFromPKCS12(data, password, keyVersion)
	default:
		return NewRSASignerFromPEM(data, keyVersion)
	}
}
