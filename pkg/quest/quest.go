// Package quest assembles the byte level formats into one quest model:
// it unpacks the container, inflates and decodes the entity table and
// the script container, lifts the object code into segments, and
// extracts the semantics tools care about, such as the episode, the map
// variants and what every NPC actually is.
package quest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/seliria/questfile/pkg/bin"
	"github.com/seliria/questfile/pkg/bytecode"
	"github.com/seliria/questfile/pkg/dat"
	"github.com/seliria/questfile/pkg/qst"
)

// Compressor inflates and deflates embedded file payloads. The quest
// layer never assumes a concrete scheme; callers wire one in, usually
// the prs package.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// ErrNoCompressor is returned when a Codec runs without a Compressor.
var ErrNoCompressor = errors.New("quest: no compressor configured")

// Errors for containers missing one of the two required members.
var (
	ErrMissingDatFile = errors.New("quest: container holds no .dat file")
	ErrMissingBinFile = errors.New("quest: container holds no .bin file")
)

// Codec decodes and encodes complete quests.
type Codec struct {
	Compressor Compressor
}

// QuestNpc pairs a raw NPC placement with the identity derived from its
// type code, roaming value, scale and the quest episode.
type QuestNpc struct {
	Area   uint32
	Kind   NpcKind
	Record dat.NpcRecord
}

// Quest is a fully decoded quest.
type Quest struct {
	QuestNo   uint16
	ID        uint32
	Language  uint32
	Name      string
	ShortDesc string
	LongDesc  string
	Episode   Episode
	// MapDesignations maps an area id to the map variant the quest
	// selects for it.
	MapDesignations map[uint32]uint32
	Objects         []dat.Object
	Npcs            []QuestNpc
	UnknownChunks   []dat.UnknownChunk
	ShopItems       []uint32
	Segments        []bytecode.Segment
}

// DecodeResult carries a decoded quest and everything tolerable that
// went wrong on the way.
type DecodeResult struct {
	Quest    *Quest
	Warnings []string
}

// Info carries the authored metadata of a quest: the fields that are
// input rather than derived.
type Info struct {
	QuestNo   uint16
	ID        uint32
	Language  uint32
	Name      string
	ShortDesc string
	LongDesc  string
	ShopItems []uint32
}

// NewQuest builds a quest from authored metadata, entity records and
// code segments. The episode, the map designations and the NPC
// identities are derived from the inputs, never taken on faith, so the
// result is consistent by construction. Warnings report semantic gaps,
// such as a script without a set_episode.
func NewQuest(info Info, entities *dat.File, segments []bytecode.Segment) (*Quest, []string) {
	episode, warnings := extractEpisode(segments)
	q := &Quest{
		QuestNo:         info.QuestNo,
		ID:              info.ID,
		Language:        info.Language,
		Name:            info.Name,
		ShortDesc:       info.ShortDesc,
		LongDesc:        info.LongDesc,
		Episode:         episode,
		MapDesignations: extractMapDesignations(segments),
		Objects:         entities.Objects,
		UnknownChunks:   entities.Unknown,
		ShopItems:       info.ShopItems,
		Segments:        segments,
	}
	q.Npcs = make([]QuestNpc, len(entities.Npcs))
	for i, npc := range entities.Npcs {
		q.Npcs[i] = QuestNpc{
			Area:   npc.Area,
			Kind:   IdentifyNpc(&npc.Record, npc.Area, episode),
			Record: npc.Record,
		}
	}
	return q, warnings
}

// DecodeQuest unpacks a container and assembles the quest model. In
// lenient mode undecodable script spans degrade to data segments; in
// strict mode they fail the decode.
func (c *Codec) DecodeQuest(data []byte, lenient bool) (*DecodeResult, error) {
	if c.Compressor == nil {
		return nil, ErrNoCompressor
	}
	files, warnings, err := qst.Decode(data)
	if err != nil {
		return nil, err
	}
	datFile := findFile(files, ".dat")
	binFile := findFile(files, ".bin")
	if datFile == nil {
		return nil, ErrMissingDatFile
	}
	if binFile == nil {
		return nil, ErrMissingBinFile
	}
	if datFile.QuestNo != binFile.QuestNo {
		warnings = append(warnings, fmt.Sprintf("quest numbers disagree: .dat says %d, .bin says %d", datFile.QuestNo, binFile.QuestNo))
	}

	datBytes, err := c.Compressor.Decompress(datFile.Data)
	if err != nil {
		return nil, fmt.Errorf("quest: inflating %q: %w", datFile.Name, err)
	}
	binBytes, err := c.Compressor.Decompress(binFile.Data)
	if err != nil {
		return nil, fmt.Errorf("quest: inflating %q: %w", binFile.Name, err)
	}

	entities, err := dat.Parse(datBytes)
	if err != nil {
		return nil, err
	}
	script, binWarnings, err := bin.Parse(binBytes)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, binWarnings...)

	segments, codeWarnings, err := bytecode.ParseObjectCode(
		script.ObjectCode, script.LabelOffsets, entryLabels(entities), lenient)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, codeWarnings...)

	q, buildWarnings := NewQuest(Info{
		QuestNo:   binFile.QuestNo,
		ID:        script.QuestID,
		Language:  script.Language,
		Name:      script.Name,
		ShortDesc: script.ShortDesc,
		LongDesc:  script.LongDesc,
		ShopItems: script.ShopItems,
	}, entities, segments)
	warnings = append(warnings, buildWarnings...)
	return &DecodeResult{Quest: q, Warnings: warnings}, nil
}

// EncodeQuest packs a quest back into a container. fileName names the
// container; its stem, cut to 11 characters, names the embedded files.
//
// NPC records whose derived identity already matches their Kind are
// written untouched, byte for byte. Records that disagree, usually
// because a tool changed Kind, are rewritten from the canonical spawn
// parameters for that kind; a kind with no spawn parameters fails the
// encode.
func (c *Codec) EncodeQuest(q *Quest, fileName string) ([]byte, error) {
	if c.Compressor == nil {
		return nil, ErrNoCompressor
	}
	table := &dat.File{
		Objects: q.Objects,
		Npcs:    make([]dat.Npc, len(q.Npcs)),
		Unknown: q.UnknownChunks,
	}
	for i := range q.Npcs {
		record, err := encodeNpc(&q.Npcs[i], q.Episode)
		if err != nil {
			return nil, err
		}
		table.Npcs[i] = dat.Npc{Area: q.Npcs[i].Area, Record: record}
	}

	code, labelOffsets, err := bytecode.WriteObjectCode(q.Segments)
	if err != nil {
		return nil, err
	}
	script := &bin.File{
		QuestID:      q.ID,
		Language:     q.Language,
		Name:         q.Name,
		ShortDesc:    q.ShortDesc,
		LongDesc:     q.LongDesc,
		ShopItems:    q.ShopItems,
		ObjectCode:   code,
		LabelOffsets: labelOffsets,
	}
	binBytes, err := script.Serialize()
	if err != nil {
		return nil, err
	}

	datCompressed, err := c.Compressor.Compress(table.Serialize())
	if err != nil {
		return nil, fmt.Errorf("quest: deflating the entity table: %w", err)
	}
	binCompressed, err := c.Compressor.Compress(binBytes)
	if err != nil {
		return nil, fmt.Errorf("quest: deflating the script: %w", err)
	}

	base := baseName(fileName)
	return qst.Encode([]qst.File{
		{QuestNo: q.QuestNo, Name: base + ".dat", LongName: base + ".dat", Data: datCompressed},
		{QuestNo: q.QuestNo, Name: base + ".bin", LongName: base + ".bin", Data: binCompressed},
	})
}

func encodeNpc(npc *QuestNpc, ep Episode) (dat.NpcRecord, error) {
	record := npc.Record
	if IdentifyNpc(&record, npc.Area, ep) == npc.Kind {
		return record, nil
	}
	spawn, ok := NpcSpawnInfo(npc.Kind)
	if !ok {
		return dat.NpcRecord{}, fmt.Errorf("quest: no spawn parameters for NPC kind %v", npc.Kind)
	}
	record.TypeCode = spawn.Code
	record.Roaming = spawn.Roaming
	if spawn.Regular {
		record.Scale[1] = 1
	} else {
		record.Scale[1] = 2
	}
	if IdentifyNpc(&record, npc.Area, ep) != npc.Kind {
		return dat.NpcRecord{}, fmt.Errorf("quest: NPC kind %v cannot appear in area %d of %v", npc.Kind, npc.Area, ep)
	}
	return record, nil
}

// entryLabels gathers every script label the entity table references,
// plus label 0, the quest entrypoint.
func entryLabels(entities *dat.File) []int {
	seen := map[int]bool{0: true}
	labels := []int{0}
	add := func(label int) {
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	for i := range entities.Objects {
		for _, label := range entities.Objects[i].Record.ScriptLabels() {
			add(label)
		}
	}
	for i := range entities.Npcs {
		add(entities.Npcs[i].Record.ScriptLabelID())
	}
	return labels
}

func findFile(files []qst.File, ext string) *qst.File {
	for i := range files {
		name := strings.TrimSpace(strings.ToLower(files[i].Name))
		if strings.HasSuffix(name, ext) {
			return &files[i]
		}
	}
	return nil
}

func baseName(fileName string) string {
	base := fileName
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if len(base) > 11 {
		base = base[:11]
	}
	return base
}
