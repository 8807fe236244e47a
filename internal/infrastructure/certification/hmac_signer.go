package certification

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"

	"github.com/kwanza/fiscal/internal/domain/fiscal"
)

// HMACSigner signs with HMAC-SHA256. Signatures are deterministic, which keeps
// development data reproducible, but they are not accepted by AGT.
type HMACSigner struct {
	secret     []byte
	keyVersion string
}

var _ fiscal.Signer = (*HMACSigner)(nil)

// NewHMACSigner creates an HMAC signer keyed by secret.
func NewHMACSigner(secret []byte, keyVersion string) (*HMACSigner, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if keyVersion == "" {
		keyVersion = "1"
	}
	return &HMACSigner{secret: append([]byte(nil), secret...), keyVersion: keyVersion}, nil
}

// Sign implements fiscal.Signer.
func (s *HMACSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return mac.Sum(nil), nil
}

// KeyVersion implements fiscal.Signer.
func (s *HMACSigner) KeyVersion() string {
	return s.keyVersion
}
