package booking

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
)

// Selection is the client's choice of options (at most one per group) and
// extras with quantities. It is the single schema used for pricing and storage.
type Selection struct {
	OptionIDs []uuid.UUID       `json:"option_ids"`
	Extras    map[uuid.UUID]int `json:"extras"`
}

// Normalized returns a copy with option ids sorted and a non-nil extras map,
// so equal selections serialize identically.
func (s Selection) Normalized() Selection {
	out := Selection{
		OptionIDs: make([]uuid.UUID, len(s.OptionIDs)),
		Extras:    make(map[uuid.UUID]int, len(s.Extras)),
	}
	copy(out.OptionIDs, s.OptionIDs)
	sortIDs(out.OptionIDs)
	for id, q := range s.Extras {
		out.Extras[id] = q
	}
	return out
}

// ExtraIDs returns the selected extra ids in ascending order.
func (s Selection) ExtraIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Extras))
	for id := range s.Extras {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}
