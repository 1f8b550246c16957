package securestorage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrips(t *testing.T) {
	s := New(NewMemoryBackend(), "ns", "tab-secret")

	type payload struct{ Foo string }
	require.NoError(t, s.Set("k", payload{Foo: "bar"}, SetOptions{Encrypt: true}))

	var out payload
	ok, err := s.Get("k", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bar", out.Foo)
}

func TestEnvelopeTamperedCiphertextErrors(t *testing.T) {
	backend := NewMemoryBackend()
	s := New(backend, "ns", "tab-secret")

	require.NoError(t, s.Set("k", "value", SetOptions{Encrypt: true}))

	raw, _ := backend.Get("ns:k")
	tampered := raw[:len(raw)-4] + "abcd"
	backend.Set("ns:k", tampered)

	var out string
	_, err := s.Get("k", &out)
	require.Error(t, err)
}

func TestEnvelopeTTLExpiry(t *testing.T) {
	s := New(NewMemoryBackend(), "ns", "secret")
	require.NoError(t, s.Set("k", "v", SetOptions{TTL: 10 * time.Millisecond}))

	time.Sleep(20 * time.Millisecond)
	var out string
	ok, err := s.Get("k", &out)
	require.NoError(t, err)
	require.False(t, ok, "expired entry should be reported as absent")
}

func TestEnvelopeQuotaExceededRetriesAfterCleanup(t *testing.T) {
	backend := NewMemoryBackend()
	backend.MaxEntries = 1
	s := New(backend, "ns", "secret")

	require.NoError(t, s.Set("expiring", "v1", SetOptions{TTL: 1 * time.Millisecond}))
	time.Sleep(5 * time.Millisecond)

	err := s.Set("new", "v2", SetOptions{})
	require.NoError(t, err, "cleanup should free the expired entry and let the retry succeed")
}

func TestEnvelopeTagPrefix(t *testing.T) {
	backend := NewMemoryBackend()
	s := New(backend, "ns", "secret")
	require.NoError(t, s.Set("k", "v", SetOptions{Encrypt: true}))

	raw, _ := backend.Get("ns:k")
	require.True(t, strings.HasPrefix(raw, "enc:"))
}
