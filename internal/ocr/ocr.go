// Package ocr extracts expense fields from uploaded receipts.
package ocr

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"time"

	"eventfin/internal/core"
	"eventfin/internal/log"
)

const (
	SimulatedProvider = "Proveedor Ejemplo S.A."
	SimulatedConcept  = "Servicio de ejemplo"

	// Simulated amounts fall in [minCents, minCents+spanCents).
	minCents  = 100000
	spanCents = 1000000
)

var ErrEmptyDocument = errors.New("empty document")

// Document is an uploaded receipt.
type Document struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Extractor turns a receipt into suggested expense fields.
type Extractor interface {
	ExtractDocumentFields(ctx context.Context, doc Document) (core.OCRData, error)
}

// Simulated returns fixed provider and concept fields, a random amount and
// today's date after Delay.
type Simulated struct {
	Delay  time.Duration
	Now    func() time.Time
	Intn   func(n int64) int64
	logger *log.Logger
}

func NewSimulated(delay time.Duration, logger *log.Logger) *Simulated {
	return &Simulated{
		Delay:  delay,
		Now:    time.Now,
		Intn:   rand.Int64N,
		logger: logger.WithComponent(log.ComponentOCR),
	}
}

func (s *Simulated) ExtractDocumentFields(ctx context.Context, doc Document) (core.OCRData, error) {
	if doc.Size == 0 && doc.Body == nil {
		return core.OCRData{}, ErrEmptyDocument
	}
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return core.OCRData{}, ctx.Err()
		case <-t.C:
		}
	}

	data := core.OCRData{
		Provider: SimulatedProvider,
		Concept:  SimulatedConcept,
		Amount:   core.Money{Cents: minCents + s.Intn(spanCents)},
		Date:     core.DateOf(s.Now()),
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "Document fields extracted",
			log.FieldOperation, log.OpExtract,
			"document", doc.Name,
			log.FieldAmountCents, data.Amount.Cents)
	}
	return data, nil
}
