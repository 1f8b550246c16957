package hardware

import (
	"context"
	"fmt"
	"sync"

	"github.com/ShadowCorp-Dev/nearconnect/internal/events"
	"github.com/ShadowCorp-Dev/nearconnect/internal/nearerr"
)

// SessionState is the device session lifecycle per spec §4.3:
// Disconnected -> Opening -> (Idle <-> Busy) -> Closing -> Disconnected.
// An open session is Idle or Busy; there is no separate Open state.
type SessionState string

const (
	SessionDisconnected SessionState = "disconnected"
	SessionOpening       SessionState = "opening"
	SessionIdle          SessionState = "idle"
	SessionBusy          SessionState = "busy"
	SessionClosing       SessionState = "closing"
)

var sessionTransitions = map[SessionState]map[SessionState]bool{
	SessionDisconnected: {SessionOpening: true},
	SessionOpening:      {SessionIdle: true, SessionDisconnected: true},
	SessionIdle:         {SessionBusy: true, SessionClosing: true, SessionDisconnected: true},
	SessionBusy:         {SessionIdle: true, SessionClosing: true, SessionDisconnected: true},
	SessionClosing:      {SessionDisconnected: true},
}

// DriverEvent mirrors the wallet-driver event surface the UI subscribes
// to for hardware wallets: waiting/confirm/rejected/connected/disconnected.
type DriverEvent struct {
	WalletID string
	Action   string // connect | get_public_key | sign | sign_message
	Kind     string // waiting | confirm | rejected | connected | disconnected
	Message  string
}

// HIDDevice is the minimal surface session.go needs from the underlying
// transport: open a connection (which may prompt the OS HID permission
// dialog and can be cancelled by the user) and close it.
type HIDDevice interface {
	Open(ctx context.Context) error
	Close() error
}

// Session owns one hardware wallet's connection lifecycle and the single
// Protocol instance multiplexed over it. Only one device session is
// supported at a time (see DESIGN.md Open Questions).
type Session struct {
	walletID string
	device   HIDDevice
	protocol *Protocol
	bus      *events.Bus

	mu    sync.Mutex
	state SessionState
}

func NewSession(walletID string, device HIDDevice, protocol *Protocol, bus *events.Bus) *Session {
	return &Session{
		walletID: walletID,
		device:   device,
		protocol: protocol,
		bus:      bus,
		state:    SessionDisconnected,
	}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition enforces sessionTransitions; callers hold no lock.
func (s *Session) transition(next SessionState) error {
	s.mu.Lock()
	cur := s.state
	if !sessionTransitions[cur][next] {
		s.mu.Unlock()
		return fmt.Errorf("illegal hardware session transition %s -> %s", cur, next)
	}
	s.state = next
	s.mu.Unlock()
	return nil
}

func (s *Session) emit(action, kind, message string) {
	if s.bus == nil {
		return
	}
	s.bus.Emit("hardware:event", DriverEvent{WalletID: s.walletID, Action: action, Kind: kind, Message: message})
}

// Connect opens the HID device, surfacing a "waiting" event while the OS
// permission prompt (or device pairing) is outstanding. A user-cancelled
// prompt maps to USER_REJECTED, any other open failure to DEVICE_NOT_FOUND.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.transition(SessionOpening); err != nil {
		return err
	}
	s.emit("connect", "waiting", "")

	if err := s.device.Open(ctx); err != nil {
		_ = s.transition(SessionDisconnected)
		s.emit("connect", "rejected", err.Error())
		if ctx.Err() != nil {
			return nearerr.New(nearerr.UserRejected, "device connection cancelled", ctx.Err())
		}
		return nearerr.New(nearerr.DeviceNotFound, "failed to open hardware device", err)
	}

	if err := s.transition(SessionIdle); err != nil {
		return err
	}
	s.emit("connect", "connected", "")
	return nil
}

// WithBusy runs fn while the session is marked Busy, returning it to Idle
// afterwards regardless of outcome. Called by wallet-driver operations
// (get_public_key, sign, sign_message) so a concurrent caller observing
// Busy knows the device is already mid-exchange.
func (s *Session) WithBusy(action string, fn func() error) error {
	if err := s.transition(SessionBusy); err != nil {
		return nearerr.New(nearerr.DeviceBusy, "device session is not idle", err)
	}
	s.emit(action, "waiting", "")

	err := fn()

	if transErr := s.transition(SessionIdle); transErr != nil {
		// The device dropped mid-operation (framing violation, detach).
		_ = s.transition(SessionDisconnected)
		s.emit(action, "disconnected", transErr.Error())
		if err == nil {
			err = nearerr.New(nearerr.Disconnected, "device disconnected mid-operation", transErr)
		}
		return err
	}

	if err != nil {
		if ne, ok := err.(*nearerr.Error); ok && ne.Kind == nearerr.UserRejected {
			s.emit(action, "rejected", "")
		}
		return err
	}
	s.emit(action, "confirm", "")
	return nil
}

// Close transitions Closing -> Disconnected, releasing the underlying
// device handle. Safe to call from any state reachable from Idle/Busy.
func (s *Session) Close() error {
	s.mu.Lock()
	cur := s.state
	s.mu.Unlock()
	if cur == SessionDisconnected {
		return nil
	}

	if err := s.transition(SessionClosing); err != nil {
		// From Busy, force through: an in-flight exchange will fail on
		// its own when the handle closes underneath it.
		s.mu.Lock()
		s.state = SessionClosing
		s.mu.Unlock()
	}
	err := s.device.Close()
	_ = s.transition(SessionDisconnected)
	s.emit("connect", "disconnected", "")
	return err
}

// HandleTransportFailure forces the session to Disconnected from any
// state, used when the HID layer reports a detach or framing violation
// outside the scope of a single WithBusy call.
func (s *Session) HandleTransportFailure(reason string) {
	s.mu.Lock()
	s.state = SessionDisconnected
	s.mu.Unlock()
	s.emit("connect", "disconnected", reason)
}
