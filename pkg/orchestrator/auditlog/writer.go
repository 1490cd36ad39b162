//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package auditlog provides an [io.Writer]-backed [orchestrator.AuditLogPort],
// writing each audit event as a single line of JSON.
package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hodei/authzcore/pkg/orchestrator"
)

// WriterLog writes audit events as newline-delimited JSON to an [io.Writer].
// Safe for concurrent use; writes are serialized so records are never
// interleaved.
type WriterLog struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdout returns a WriterLog that writes to os.Stdout. The orchestrator
// does not install it by itself: without WithAuditLog no event is written.
func NewStdout() *WriterLog {
	return NewWriter(os.Stdout)
}

// NewWriter returns a WriterLog that writes to w.
func NewWriter(w io.Writer) *WriterLog {
	return &WriterLog{w: w}
}

// Record marshals event to JSON and writes it as a single line. Errors from
// the underlying writer are returned so the caller (the orchestrator) can
// log-and-continue per the best-effort delivery contract.
func (l *WriterLog) Record(_ context.Context, event orchestrator.AuditEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = fmt.Fprintln(l.w, string(raw))
	return err
}
