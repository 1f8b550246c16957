package audit

import (
	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/securestorage"
)

const persistedAuditLogKey = "audit-log"

// PersistedLog mirrors the most recent audit events to the `<ns>:audit-log`
// storage key (spec §6.3), capped to the last Cap entries. This is
// distinct from Log's io.Writer durable sink: that sink is an unbounded,
// append-only forwarding target (the teacher's NDJSON file-sink shape,
// appropriate for an external log aggregator that owns its own
// retention). PersistedLog instead plays the same restore-on-reload
// role `<ns>:session`/`<ns>:external-session` play for connection
// state — a tab that reloads reads back a small, bounded window instead
// of replaying unbounded history, so it is capped at write time rather
// than left to whatever reads it to enforce a limit.
type PersistedLog struct {
	backing *securestorage.Store
	cap     int
}

// NewPersistedLog constructs a PersistedLog bound to backing, capped at
// cap entries (the spec's documented default is 100).
func NewPersistedLog(backing *securestorage.Store, cap int) *PersistedLog {
	if cap <= 0 {
		cap = 100
	}
	return &PersistedLog{backing: backing, cap: cap}
}

// Append adds evt to the persisted window, trimming to the last Cap
// entries before writing back.
func (p *PersistedLog) Append(evt model.AuditEvent) error {
	events, err := p.Load()
	if err != nil {
		return err
	}
	events = append(events, evt)
	if len(events) > p.cap {
		events = events[len(events)-p.cap:]
	}
	return p.backing.Set(persistedAuditLogKey, events, securestorage.SetOptions{Encrypt: true})
}

// Load returns the persisted window, nil if nothing has been persisted
// yet.
func (p *PersistedLog) Load() ([]model.AuditEvent, error) {
	var events []model.AuditEvent
	ok, err := p.backing.Get(persistedAuditLogKey, &events)
	if err != nil || !ok {
		return nil, err
	}
	return events, nil
}

// Clear removes the persisted window.
func (p *PersistedLog) Clear() {
	p.backing.Delete(persistedAuditLogKey)
}
