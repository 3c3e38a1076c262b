package dat

import (
	"encoding/binary"
	"fmt"
)

const chunkHeaderSize = 16

// Chunk kinds carried in the table. Anything else is preserved
// verbatim as an UnknownChunk.
const (
	kindEnd     = 0
	kindObjects = 1
	kindNpcs    = 2
)

// Object is one object placement tagged with the area it belongs to.
type Object struct {
	Area   uint32
	Record ObjectRecord
}

// Npc is one NPC placement tagged with the area it belongs to.
type Npc struct {
	Area   uint32
	Record NpcRecord
}

// UnknownChunk preserves a chunk of an unrecognized kind byte for byte.
type UnknownChunk struct {
	Kind uint32
	Area uint32
	Data []byte
}

// File is a decoded entity table.
type File struct {
	Objects []Object
	Npcs    []Npc
	Unknown []UnknownChunk
}

// Parse decodes an entity table. Chunks follow each other until a kind
// zero terminator; every chunk carries its own redundant sizes, which
// must agree.
func Parse(data []byte) (*File, error) {
	f := &File{}
	pos := 0
	for pos < len(data) {
		if pos+chunkHeaderSize > len(data) {
			return nil, fmt.Errorf("dat: truncated chunk header at offset %d", pos)
		}
		kind := binary.LittleEndian.Uint32(data[pos:])
		totalSize := binary.LittleEndian.Uint32(data[pos+4:])
		area := binary.LittleEndian.Uint32(data[pos+8:])
		entitiesSize := binary.LittleEndian.Uint32(data[pos+12:])
		if kind == kindEnd {
			return f, nil
		}
		if uint64(entitiesSize)+chunkHeaderSize != uint64(totalSize) {
			return nil, fmt.Errorf("dat: corrupt chunk at offset %d: entity size %d does not match chunk size %d", pos, entitiesSize, totalSize)
		}
		body := pos + chunkHeaderSize
		if body+int(entitiesSize) > len(data) {
			return nil, fmt.Errorf("dat: chunk at offset %d runs past the end of the table", pos)
		}
		payload := data[body : body+int(entitiesSize)]
		switch kind {
		case kindObjects:
			if len(payload)%objectRecordSize != 0 {
				return nil, fmt.Errorf("dat: object chunk for area %d holds %d bytes, not a multiple of %d", area, len(payload), objectRecordSize)
			}
			for off := 0; off < len(payload); off += objectRecordSize {
				f.Objects = append(f.Objects, Object{Area: area, Record: parseObjectRecord(payload[off:])})
			}
		case kindNpcs:
			if len(payload)%npcRecordSize != 0 {
				return nil, fmt.Errorf("dat: npc chunk for area %d holds %d bytes, not a multiple of %d", area, len(payload), npcRecordSize)
			}
			for off := 0; off < len(payload); off += npcRecordSize {
				f.Npcs = append(f.Npcs, Npc{Area: area, Record: parseNpcRecord(payload[off:])})
			}
		default:
			f.Unknown = append(f.Unknown, UnknownChunk{
				Kind: kind,
				Area: area,
				Data: append([]byte(nil), payload...),
			})
		}
		pos = body + int(entitiesSize)
	}
	return f, nil
}

// Serialize writes the table back out. Entities regroup into one chunk
// per area in order of first appearance: all object chunks, then all
// NPC chunks, then unknown chunks verbatim, then the terminator.
func (f *File) Serialize() []byte {
	var buf []byte
	for _, area := range objectAreas(f.Objects) {
		var body []byte
		for i := range f.Objects {
			if f.Objects[i].Area == area {
				body = f.Objects[i].Record.appendTo(body)
			}
		}
		buf = appendChunk(buf, kindObjects, area, body)
	}
	for _, area := range npcAreas(f.Npcs) {
		var body []byte
		for i := range f.Npcs {
			if f.Npcs[i].Area == area {
				body = f.Npcs[i].Record.appendTo(body)
			}
		}
		buf = appendChunk(buf, kindNpcs, area, body)
	}
	for i := range f.Unknown {
		buf = appendChunk(buf, f.Unknown[i].Kind, f.Unknown[i].Area, f.Unknown[i].Data)
	}
	// Terminator.
	buf = append(buf, make([]byte, chunkHeaderSize)...)
	return buf
}

func appendChunk(buf []byte, kind, area uint32, body []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, kind)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(chunkHeaderSize+len(body)))
	buf = binary.LittleEndian.AppendUint32(buf, area)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(body)))
	return append(buf, body...)
}

func objectAreas(objects []Object) []uint32 {
	var areas []uint32
	seen := make(map[uint32]bool)
	for i := range objects {
		if !seen[objects[i].Area] {
			seen[objects[i].Area] = true
			areas = append(areas, objects[i].Area)
		}
	}
	return areas
}

func npcAreas(npcs []Npc) []uint32 {
	var areas []uint32
	seen := make(map[uint32]bool)
	for i := range npcs {
		if !seen[npcs[i].Area] {
			seen[npcs[i].Area] = true
			areas = append(areas, npcs[i].Area)
		}
	}
	return areas
}
