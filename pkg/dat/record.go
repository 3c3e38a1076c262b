// Package dat implements the entity table format: the chunked container
// holding every object and NPC placement of a quest, grouped by area.
package dat

import (
	"encoding/binary"
	"math"
)

const (
	objectRecordSize = 68
	npcRecordSize    = 72
)

// ObjectRecord is one 68 byte object placement. The seven trailing
// properties keep their raw 32 bit patterns because their meaning
// depends on the object type; use the Prop accessors to view a slot as
// a float or an integer.
type ObjectRecord struct {
	TypeCode  uint16
	GroupID   uint16
	Unknown1  [8]byte
	SectionID uint16
	Unknown2  [2]byte
	Position  [3]float32
	Rotation  [3]int32
	Props     [7]uint32
}

// PropF32 views property slot i as a float.
func (r *ObjectRecord) PropF32(i int) float32 {
	return math.Float32frombits(r.Props[i])
}

// SetPropF32 stores a float into property slot i.
func (r *ObjectRecord) SetPropF32(i int, v float32) {
	r.Props[i] = math.Float32bits(v)
}

// PropI32 views property slot i as a signed integer.
func (r *ObjectRecord) PropI32(i int) int32 {
	return int32(r.Props[i])
}

// SetPropI32 stores a signed integer into property slot i.
func (r *ObjectRecord) SetPropI32(i int, v int32) {
	r.Props[i] = uint32(v)
}

// scriptLabelSlots maps object type codes to the property slots that
// carry script labels. Most object types carry none.
var scriptLabelSlots = map[uint16][]int{
	0x0012: {3},    // script collision volume
	0x008B: {3},    // forest console
	0x008D: {3},    // Rico message pod
	0x0145: {4, 5}, // talk link to support
}

// ScriptLabelSlots returns the property slots holding script labels for
// an object type, or nil.
func ScriptLabelSlots(typeCode uint16) []int {
	return scriptLabelSlots[typeCode]
}

// ScriptLabels returns the script labels this object references. Labels
// are stored as floats; they round to the nearest label id.
func (r *ObjectRecord) ScriptLabels() []int {
	slots := scriptLabelSlots[r.TypeCode]
	if len(slots) == 0 {
		return nil
	}
	labels := make([]int, len(slots))
	for i, slot := range slots {
		labels[i] = int(math.Round(float64(r.PropF32(slot))))
	}
	return labels
}

// NpcRecord is one 72 byte NPC placement.
type NpcRecord struct {
	TypeCode    uint16
	GroupID     uint16
	Unknown1    [8]byte
	SectionID   uint16
	Unknown2    [6]byte
	Position    [3]float32
	Rotation    [3]int32
	Scale       [3]float32
	NpcID       float32
	ScriptLabel float32
	Roaming     uint32
	Unknown3    [4]byte
}

// ScriptLabelID rounds the stored script label to its label id.
func (r *NpcRecord) ScriptLabelID() int {
	return int(math.Round(float64(r.ScriptLabel)))
}

func parseObjectRecord(data []byte) ObjectRecord {
	var r ObjectRecord
	r.TypeCode = binary.LittleEndian.Uint16(data[0:])
	r.GroupID = binary.LittleEndian.Uint16(data[2:])
	copy(r.Unknown1[:], data[4:12])
	r.SectionID = binary.LittleEndian.Uint16(data[12:])
	copy(r.Unknown2[:], data[14:16])
	for i := 0; i < 3; i++ {
		r.Position[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[16+4*i:]))
		r.Rotation[i] = int32(binary.LittleEndian.Uint32(data[28+4*i:]))
	}
	for i := 0; i < 7; i++ {
		r.Props[i] = binary.LittleEndian.Uint32(data[40+4*i:])
	}
	return r
}

func (r *ObjectRecord) appendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, r.TypeCode)
	buf = binary.LittleEndian.AppendUint16(buf, r.GroupID)
	buf = append(buf, r.Unknown1[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, r.SectionID)
	buf = append(buf, r.Unknown2[:]...)
	for i := 0; i < 3; i++ {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(r.Position[i]))
	}
	for i := 0; i < 3; i++ {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Rotation[i]))
	}
	for i := 0; i < 7; i++ {
		buf = binary.LittleEndian.AppendUint32(buf, r.Props[i])
	}
	return buf
}

func parseNpcRecord(data []byte) NpcRecord {
	var r NpcRecord
	r.TypeCode = binary.LittleEndian.Uint16(data[0:])
	r.GroupID = binary.LittleEndian.Uint16(data[2:])
	copy(r.Unknown1[:], data[4:12])
	r.SectionID = binary.LittleEndian.Uint16(data[12:])
	copy(r.Unknown2[:], data[14:20])
	for i := 0; i < 3; i++ {
		r.Position[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[20+4*i:]))
		r.Rotation[i] = int32(binary.LittleEndian.Uint32(data[32+4*i:]))
		r.Scale[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[44+4*i:]))
	}
	r.NpcID = math.Float32frombits(binary.LittleEndian.Uint32(data[56:]))
	r.ScriptLabel = math.Float32frombits(binary.LittleEndian.Uint32(data[60:]))
	r.Roaming = binary.LittleEndian.Uint32(data[64:])
	copy(r.Unknown3[:], data[68:72])
	return r
}

func (r *NpcRecord) appendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, r.TypeCode)
	buf = binary.LittleEndian.AppendUint16(buf, r.GroupID)
	buf = append(buf, r.Unknown1[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, r.SectionID)
	buf = append(buf, r.Unknown2[:]...)
	for i := 0; i < 3; i++ {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(r.Position[i]))
	}
	for i := 0; i < 3; i++ {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Rotation[i]))
	}
	for i := 0; i < 3; i++ {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(r.Scale[i]))
	}
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(r.NpcID))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(r.ScriptLabel))
	buf = binary.LittleEndian.AppendUint32(buf, r.Roaming)
	buf = append(buf, r.Unknown3[:]...)
	return buf
}
