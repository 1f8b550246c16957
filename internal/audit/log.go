// Package audit implements the append-only audit ring from spec §4.2: a
// bounded in-memory buffer with security-class routing to a console sink,
// an optional durable NDJSON mirror, and a debounced remote sink.
package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/idgen"
	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
)

// securityClassEvents are always routed to the console sink regardless of
// the general console-log config.
var securityClassEvents = map[model.AuditEventType]bool{
	model.AuditSecurityViolation: true,
	model.AuditSecurityWarning:   true,
	model.AuditTxBlocked:         true,
	model.AuditRateLimited:       true,
}

// RemoteSink receives flushed batches of events; failures re-queue the
// batch at the head for the next flush.
type RemoteSink interface {
	Send(events []model.AuditEvent) error
}

// Config tunes the ring capacity and remote-flush debounce. The
// `<ns>:audit-log` persisted-window cap (spec §6.3) is configured
// separately on PersistedLog, not here: it is a distinct sink with its
// own bounding, not a property of the in-memory ring.
type Config struct {
	MaxEvents        int
	RemoteFlushEvery time.Duration
}

// NewConfig returns the documented defaults: 1000-event ring, trimmed to
// half on overflow, 5s remote-flush debounce.
func NewConfig() Config {
	return Config{MaxEvents: 1000, RemoteFlushEvery: 5 * time.Second}
}

// ConsoleSink receives every security-class event immediately.
type ConsoleSink func(evt model.AuditEvent)

// Log is the audit log. It owns a bounded ring, an optional durable mirror
// writer (NDJSON, one line per event, matching the teacher's file sink),
// an optional bounded `<ns>:audit-log` persisted mirror, and a debounced
// remote sink.
type Log struct {
	mu        sync.Mutex
	cfg       Config
	ring      []model.AuditEvent
	console   ConsoleSink
	durable   io.Writer
	persisted *PersistedLog
	remote    RemoteSink

	pending    []model.AuditEvent
	flushTimer *time.Timer
}

// New constructs a Log. durable and remote may be nil.
func New(cfg Config, console ConsoleSink, durable io.Writer, remote RemoteSink) *Log {
	if cfg.MaxEvents <= 0 {
		cfg = NewConfig()
	}
	return &Log{cfg: cfg, console: console, durable: durable, remote: remote}
}

// SetPersistedMirror attaches (or, passed nil, detaches) the
// `<ns>:audit-log` bounded persisted mirror. Kept as a setter rather
// than a New() parameter since it is optional and wiring it requires a
// securestorage.Store the caller may construct after the Log itself.
func (l *Log) SetPersistedMirror(p *PersistedLog) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.persisted = p
}

// Record appends evt to the ring (assigning ID/timestamp if unset), routes
// security-class events to the console sink, mirrors to durable storage,
// and schedules a debounced remote flush.
func (l *Log) Record(evt model.AuditEvent) model.AuditEvent {
	if evt.ID == "" {
		evt.ID, _ = idgen.NewUUID()
	}
	if evt.TimestampMs == 0 {
		evt.TimestampMs = time.Now().UnixMilli()
	}

	l.mu.Lock()
	l.ring = append(l.ring, evt)
	if len(l.ring) > l.cfg.MaxEvents {
		// Trimming only drops oldest entries; on overflow, trim to half
		// capacity (spec §8 boundary: maxEvents+1 trims to maxEvents/2).
		keep := l.cfg.MaxEvents / 2
		l.ring = append([]model.AuditEvent{}, l.ring[len(l.ring)-keep:]...)
	}
	if l.durable != nil {
		l.mirrorLocked(evt)
	}
	persisted := l.persisted
	if l.remote != nil {
		l.pending = append(l.pending, evt)
		l.scheduleFlushLocked()
	}
	l.mu.Unlock()

	if persisted != nil {
		// Persisted-mirror failures are not fatal to recording the event
		// itself, matching mirrorLocked's durable-sink error handling below.
		_ = persisted.Append(evt)
	}

	if securityClassEvents[evt.Type] && l.console != nil {
		l.console(evt)
	}
	return evt
}

func (l *Log) mirrorLocked(evt model.AuditEvent) {
	jsonData, err := json.Marshal(evt)
	if err != nil {
		return
	}
	fmt.Fprintln(l.durable, string(jsonData))
}

func (l *Log) scheduleFlushLocked() {
	if l.flushTimer != nil {
		return
	}
	l.flushTimer = time.AfterFunc(l.cfg.RemoteFlushEvery, l.flush)
}

func (l *Log) flush() {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.flushTimer = nil
	l.mu.Unlock()

	if len(batch) == 0 || l.remote == nil {
		return
	}
	if err := l.remote.Send(batch); err != nil {
		// Re-queue at head and schedule another flush; the error itself is
		// not propagated or logged.
		l.mu.Lock()
		l.pending = append(batch, l.pending...)
		l.scheduleFlushLocked()
		l.mu.Unlock()
	}
}

// Query is the filter set supported by the query API.
type Query struct {
	Types     map[model.AuditEventType]bool
	Since     time.Time
	Until     time.Time
	WalletID  string
	AccountID string
	Risk      map[model.RiskLevel]bool
	Limit     int
}

// Find returns ring entries matching q, most recent last (ring order).
func (l *Log) Find(q Query) []model.AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []model.AuditEvent
	for _, e := range l.ring {
		if q.Types != nil && !q.Types[e.Type] {
			continue
		}
		if !q.Since.IsZero() && time.UnixMilli(e.TimestampMs).Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && time.UnixMilli(e.TimestampMs).After(q.Until) {
			continue
		}
		if q.WalletID != "" && e.WalletID != q.WalletID {
			continue
		}
		if q.AccountID != "" && e.AccountID != q.AccountID {
			continue
		}
		if q.Risk != nil && !q.Risk[e.Risk] {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// All returns a copy of the full ring.
func (l *Log) All() []model.AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.AuditEvent, len(l.ring))
	copy(out, l.ring)
	return out
}

// ExportJSON serializes the full ring as a JSON array.
func (l *Log) ExportJSON() ([]byte, error) {
	return json.Marshal(l.All())
}

// ExportCSV serializes the full ring as CSV with a fixed column header.
func (l *Log) ExportCSV() (string, error) {
	events := l.All()

	var buf stringWriter
	w := csv.NewWriter(&buf)
	header := []string{"id", "timestampMs", "type", "walletId", "accountId", "risk", "sessionId", "userAgent"}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, e := range events {
		row := []string{
			e.ID,
			strconv.FormatInt(e.TimestampMs, 10),
			string(e.Type),
			e.WalletID,
			e.AccountID,
			e.Risk.String(),
			e.SessionID,
			e.UserAgent,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type stringWriter struct {
	data []byte
}

func (s *stringWriter) Write(p []byte) (int, error) {
	s.data = append(s.data, p...)
	return len(p), nil
}

func (s *stringWriter) String() string {
	return string(s.data)
}
