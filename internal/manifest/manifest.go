// Package manifest loads and validates wallet manifests and aggregates
// them into the repository the connector consults to list selectable
// wallets (spec §6.2). The load/validate/default-value shape is grounded
// on internal/app/config.go's AppConfig pattern (defaulted fields,
// version stamping, JSON (de)serialization of a declarative document).
package manifest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
)

// Repository is the aggregated, version-stamped set of wallet manifests
// the connector offers to the embedding application.
type Repository struct {
	Version time.Time               `json:"version"`
	Wallets []model.WalletManifest  `json:"wallets"`
}

// Decode parses a single manifest document. Required fields (id, name,
// type) are validated; unknown fields are ignored (manifests evolve
// independently of the connector runtime).
func Decode(raw []byte) (model.WalletManifest, error) {
	var m model.WalletManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.WalletManifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if err := validate(m); err != nil {
		return model.WalletManifest{}, err
	}
	return m, nil
}

func validate(m model.WalletManifest) error {
	if m.ID == "" {
		return fmt.Errorf("manifest missing required field: id")
	}
	if m.Name == "" {
		return fmt.Errorf("manifest missing required field: name")
	}
	switch m.Type {
	case model.WalletSandboxed, model.WalletInjected, model.WalletPrivileged, model.WalletExternal:
	default:
		return fmt.Errorf("manifest %q has unrecognized type %q", m.ID, m.Type)
	}
	if m.Type == model.WalletExternal && m.DeepLink == nil && m.WalletConnect == nil {
		return fmt.Errorf("manifest %q is external but declares neither deepLink nor walletConnect", m.ID)
	}
	return nil
}

// NewRepository builds a Repository from already-decoded manifests,
// de-duplicating by ID (last one wins, matching a later manifest update
// overriding an earlier registration).
func NewRepository(manifests []model.WalletManifest) Repository {
	byID := make(map[string]model.WalletManifest, len(manifests))
	order := make([]string, 0, len(manifests))
	for _, m := range manifests {
		if _, exists := byID[m.ID]; !exists {
			order = append(order, m.ID)
		}
		byID[m.ID] = m
	}

	wallets := make([]model.WalletManifest, 0, len(order))
	for _, id := range order {
		wallets = append(wallets, byID[id])
	}
	return Repository{Wallets: wallets}
}

// DecodeAll decodes a JSON array of manifest documents, skipping (and
// collecting) any entries that fail validation rather than rejecting the
// whole batch — one wallet operator's malformed manifest should not take
// down every other wallet's listing.
func DecodeAll(raw []byte) (Repository, []error) {
	var docs []json.RawMessage
	if err := json.Unmarshal(raw, &docs); err != nil {
		return Repository{}, []error{fmt.Errorf("decode manifest array: %w", err)}
	}

	var manifests []model.WalletManifest
	var errs []error
	for i, doc := range docs {
		m, err := Decode(doc)
		if err != nil {
			errs = append(errs, fmt.Errorf("manifest at index %d: %w", i, err))
			continue
		}
		manifests = append(manifests, m)
	}

	repo := NewRepository(manifests)
	repo.Version = time.Now()
	return repo, errs
}

// ByID looks up one wallet manifest from the repository.
func (r Repository) ByID(id string) (model.WalletManifest, bool) {
	for _, m := range r.Wallets {
		if m.ID == id {
			return m, true
		}
	}
	return model.WalletManifest{}, false
}

// FilterByCapability returns the subset of wallets whose Capabilities
// satisfy pred.
func (r Repository) FilterByCapability(pred func(model.Capabilities) bool) []model.WalletManifest {
	var out []model.WalletManifest
	for _, m := range r.Wallets {
		if pred(m.Capabilities) {
			out = append(out, m)
		}
	}
	return out
}
