// Package audit provides PDR (Process Decision Record) writing for SignalDesk.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// Sink persists decision records.
type Sink interface {
	WritePDR(ctx context.Context, action, inputsHash, outcome, subjectID, details string) (*models.PDREntry, error)
}

// PDRWriter writes Process Decision Records for audit trails.
type PDRWriter struct {
	sink Sink
}

// NewPDRWriter creates a new PDR writer.
func NewPDRWriter(sink Sink) *PDRWriter {
	return &PDRWriter{sink: sink}
}

// Record writes a PDR entry for a coordination decision.
func (w *PDRWriter) Record(ctx context.Context, action string, inputs any, outcome, subjectID, details string) (*models.PDREntry, error) {
	return w.sink.WritePDR(ctx, action, HashInputs(inputs), outcome, subjectID, details)
}

// HashInputs creates a SHA256 hash of the inputs for reproducibility.
func HashInputs(inputs any) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
