package router

import "github.com/hxuan190/sor-engine/internal/domain"

// TokenID is a compact integer identifier for assets in the graph.
type TokenID uint32

// InvalidTokenID represents an unknown asset.
const InvalidTokenID TokenID = 0xFFFFFFFF

// TokenRegistry maps assets to compact integer IDs for O(1) array access.
// It is fixed at construction, so reads need no locking. The registration
// order is also the neighbor iteration order of the graph.
type TokenRegistry struct {
	toID    map[domain.Asset]TokenID
	toAsset []domain.Asset
}

func NewTokenRegistry(assets []domain.Asset) *TokenRegistry {
	r := &TokenRegistry{
		toID:    make(map[domain.Asset]TokenID, len(assets)),
		toAsset: make([]domain.Asset, 0, len(assets)),
	}
	for _, a := range assets {
		if _, ok := r.toID[a]; ok {
			continue
		}
		r.toID[a] = TokenID(len(r.toAsset))
		r.toAsset = append(r.toAsset, a)
	}
	return r
}

// GetID returns the ID for an asset.
func (r *TokenRegistry) GetID(a domain.Asset) (TokenID, bool) {
	id, ok := r.toID[a]
	if !ok {
		return InvalidTokenID, false
	}
	return id, true
}

// GetAsset returns the asset for an ID, empty if out of range.
func (r *TokenRegistry) GetAsset(id TokenID) domain.Asset {
	if int(id) >= len(r.toAsset) {
		return ""
	}
	return r.toAsset[id]
}

func (r *TokenRegistry) Size() int {
	return len(r.toAsset)
}

// Assets returns a copy of all registered assets in registration order.
func (r *TokenRegistry) Assets() []domain.Asset {
	out := make([]domain.Asset, len(r.toAsset))
	copy(out, r.toAsset)
	return out
}

// idSet is a membership set over token IDs.
type idSet map[TokenID]struct{}

func (s idSet) has(id TokenID) bool {
	_, ok := s[id]
	return ok
}

// subsetOf reports whether every member of s is in other.
func (s idSet) subsetOf(other idSet) bool {
	for id := range s {
		if !other.has(id) {
			return false
		}
	}
	return true
}

func (s idSet) clone() idSet {
	out := make(idSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// toSet resolves assets to IDs, silently dropping unknown assets.
func (r *TokenRegistry) toSet(assets []domain.Asset) idSet {
	s := make(idSet, len(assets))
	for _, a := range assets {
		if id, ok := r.GetID(a); ok {
			s[id] = struct{}{}
		}
	}
	return s
}
