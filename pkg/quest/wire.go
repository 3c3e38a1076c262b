package quest

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("quest: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is the compact wire form of a decoded quest: the metadata
// and derived semantics, without the raw records or object code. The
// catalog stores snapshots so tools can list and filter quests without
// re-decoding the archives.
type Snapshot struct {
	QuestNo         uint16            `cbor:"1,keyasint"`
	ID              uint32            `cbor:"2,keyasint"`
	Language        uint32            `cbor:"3,keyasint"`
	Name            string            `cbor:"4,keyasint"`
	ShortDesc       string            `cbor:"5,keyasint,omitempty"`
	LongDesc        string            `cbor:"6,keyasint,omitempty"`
	Episode         uint8             `cbor:"7,keyasint"`
	MapDesignations map[uint32]uint32 `cbor:"8,keyasint,omitempty"`
	Areas           []uint32          `cbor:"9,keyasint,omitempty"`
	ObjectCount     int               `cbor:"10,keyasint"`
	NpcCounts       map[string]int    `cbor:"11,keyasint,omitempty"`
}

// Snapshot summarizes the quest for storage. NPC counts are keyed by
// kind name, which stays stable across releases where the enum values
// may not.
func (q *Quest) Snapshot() *Snapshot {
	s := &Snapshot{
		QuestNo:     q.QuestNo,
		ID:          q.ID,
		Language:    q.Language,
		Name:        q.Name,
		ShortDesc:   q.ShortDesc,
		LongDesc:    q.LongDesc,
		Episode:     uint8(q.Episode),
		ObjectCount: len(q.Objects),
	}
	if len(q.MapDesignations) > 0 {
		s.MapDesignations = make(map[uint32]uint32, len(q.MapDesignations))
		for area, variant := range q.MapDesignations {
			s.MapDesignations[area] = variant
		}
	}
	areas := make(map[uint32]bool)
	for i := range q.Objects {
		areas[q.Objects[i].Area] = true
	}
	for i := range q.Npcs {
		areas[q.Npcs[i].Area] = true
	}
	for area := range areas {
		s.Areas = append(s.Areas, area)
	}
	sort.Slice(s.Areas, func(i, j int) bool { return s.Areas[i] < s.Areas[j] })
	if len(q.Npcs) > 0 {
		s.NpcCounts = make(map[string]int)
		for i := range q.Npcs {
			s.NpcCounts[q.Npcs[i].Kind.String()]++
		}
	}
	return s
}

// MarshalSnapshot serializes a Snapshot to canonical CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("quest: unmarshal snapshot: %w", err)
	}
	return &s, nil
}
