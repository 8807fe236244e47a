package fiscal

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/shared"
)

// SequenceWidth is the minimum number of digits of the sequence part of a document number
const SequenceWidth = 6

// SequenceKey identifies one numbering series
type SequenceKey struct {
	TenantID uuid.UUID
	Type     DocumentType
	Year     int
}

// String returns a stable textual form of the key
func (k SequenceKey) String() string {
	return fmt.Sprintf("%s:%s:%d", k.TenantID, k.Type, k.Year)
}

// SequenceAllocation is the outcome of reserving the next number of a series
type SequenceAllocation struct {
	Sequence int64
	// PreviousHash is the hash control of the previous document of the
	// series, empty for the first document.
	PreviousHash string
}

// SequenceAllocator hands out strictly increasing sequence values per series.
// Implementations must linearize Next for the same key.
type SequenceAllocator interface {
	// Next reserves the next sequence value of the series
	Next(ctx context.Context, key SequenceKey) (SequenceAllocation, error)

	// RecordHash stores the hash control of the document that took seq,
	// so the next allocation of the series can chain to it
	RecordHash(ctx context.Context, key SequenceKey, seq int64, hash string) error
}

// SeriesReservation is a held claim on the next number of a series
type SeriesReservation struct {
	Key SequenceKey
	SequenceAllocation
	// Token identifies the holder to the backend
	Token string
}

// SeriesReserver is implemented by numbering backends that live outside the
// document transaction. Reserve holds the series until Commit or Release, so
// every reservation chains to the last committed document and a released
// number is handed out again.
type SeriesReserver interface {
	Reserve(ctx context.Context, key SequenceKey) (SeriesReservation, error)
	// Commit advances the series to r.Sequence with hash as its last hash
	Commit(ctx context.Context, r SeriesReservation, hash string) error
	Release(ctx context.Context, r SeriesReservation) error
}

// FormatDocumentNumber renders "<TAG> <YEAR>/<SEQ>" with SEQ zero padded
func FormatDocumentNumber(t DocumentType, year int, seq int64) string {
	return fmt.Sprintf("%s %d/%0*d", t, year, SequenceWidth, seq)
}

// ParseDocumentNumber is the inverse of FormatDocumentNumber
func ParseDocumentNumber(number string) (DocumentType, int, int64, error) {
	invalid := shared.NewValidationError("invalid document number %q", number)

	tag, rest, ok := strings.Cut(number, " ")
	if !ok {
		return "", 0, 0, invalid
	}
	t := DocumentType(tag)
	if !t.IsValid() {
		return "", 0, 0, invalid
	}
	yearPart, seqPart, ok := strings.Cut(rest, "/")
	if !ok || len(seqPart) < SequenceWidth {
		return "", 0, 0, invalid
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil || year < 1000 || year > 9999 {
		return "", 0, 0, invalid
	}
	seq, err := strconv.ParseInt(seqPart, 10, 64)
	if err != nil || seq <= 0 {
		return "", 0, 0, invalid
	}
	return t, year, seq, nil
}
