package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/dynaprobe/internal/domain"
)

// Reader is the one read-style operation issued against the store.
// It returns how many items came back and how many the store examined.
// Timeouts are the Reader's business: they are enforced by its transport.
type Reader interface {
	Read(ctx context.Context, limit int) (items, scanned int, err error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, limit int) (int, int, error)

func (f ReaderFunc) Read(ctx context.Context, limit int) (int, int, error) {
	return f(ctx, limit)
}

// Prober times a single Reader call and turns its outcome into a result.
// There is no retry: one Attempt is exactly one Read.
type Prober struct {
	Reader Reader
	now    func() time.Time
}

func NewProber(r Reader) *Prober {
	return &Prober{Reader: r, now: time.Now}
}

// Attempt performs one read and never returns an error; failures are data.
func (p *Prober) Attempt(ctx context.Context, limit int) domain.ProbeResult {
	res := domain.ProbeResult{
		ID:        uuid.NewString(),
		Limit:     limit,
		ErrorKind: domain.ErrorNone,
	}

	start := p.now()
	items, scanned, err := p.Reader.Read(ctx, limit)
	elapsed := p.now().Sub(start)

	res.CheckedAt = start.UTC()
	res.RoundTripMS = float64(elapsed) / float64(time.Millisecond)
	if res.RoundTripMS < 0 {
		res.RoundTripMS = 0
	}

	if err != nil {
		res.ErrorMessage = err.Error()
		res.ErrorKind = Classify(res.ErrorMessage)
		res.ErrorType = errorType(err)
		return res
	}

	res.Success = true
	res.ItemsReturned = &items
	res.ItemsScanned = &scanned
	return res
}

// errorType names the innermost error's dynamic type, for display only.
func errorType(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}
