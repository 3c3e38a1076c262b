package dat

import (
	"bytes"
	"encoding/binary"
	"math"
	"reflect"
	"strings"
	"testing"
)

func testObject(typeCode uint16, section uint16) ObjectRecord {
	r := ObjectRecord{
		TypeCode:  typeCode,
		GroupID:   2,
		SectionID: section,
		Position:  [3]float32{10.5, -3, 800},
		Rotation:  [3]int32{0, 16384, -1},
	}
	r.Unknown1 = [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	r.SetPropF32(0, 1.25)
	r.SetPropI32(6, -9)
	return r
}

func testNpc(typeCode uint16, area uint32, label float32) Npc {
	return Npc{
		Area: area,
		Record: NpcRecord{
			TypeCode:    typeCode,
			GroupID:     1,
			SectionID:   4,
			Position:    [3]float32{1, 2, 3},
			Rotation:    [3]int32{100, 200, 300},
			Scale:       [3]float32{1, 1, 1},
			NpcID:       17,
			ScriptLabel: label,
			Roaming:     2,
		},
	}
}

func TestObjectRecordLayout(t *testing.T) {
	r := testObject(0x0092, 7)
	buf := r.appendTo(nil)
	if len(buf) != objectRecordSize {
		t.Fatalf("len(buf) = %d, want %d", len(buf), objectRecordSize)
	}
	if got := binary.LittleEndian.Uint16(buf[0:]); got != 0x0092 {
		t.Errorf("type code at offset 0 = %#04x", got)
	}
	if got := binary.LittleEndian.Uint16(buf[12:]); got != 7 {
		t.Errorf("section id at offset 12 = %d", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[16:])); got != 10.5 {
		t.Errorf("x position at offset 16 = %v", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[40:])); got != 1.25 {
		t.Errorf("first property at offset 40 = %v", got)
	}
	back := parseObjectRecord(buf)
	if back != r {
		t.Errorf("parsed record differs: %+v", back)
	}
}

func TestNpcRecordLayout(t *testing.T) {
	n := testNpc(0x0044, 1, 150)
	buf := n.Record.appendTo(nil)
	if len(buf) != npcRecordSize {
		t.Fatalf("len(buf) = %d, want %d", len(buf), npcRecordSize)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[60:])); got != 150 {
		t.Errorf("script label at offset 60 = %v", got)
	}
	if got := binary.LittleEndian.Uint32(buf[64:]); got != 2 {
		t.Errorf("roaming at offset 64 = %d", got)
	}
	back := parseNpcRecord(buf)
	if back != n.Record {
		t.Errorf("parsed record differs: %+v", back)
	}
}

func TestParseSerializeRoundTrip(t *testing.T) {
	f := &File{
		Objects: []Object{
			{Area: 1, Record: testObject(0x0012, 1)},
			{Area: 1, Record: testObject(0x0092, 2)},
			{Area: 3, Record: testObject(0x0145, 3)},
		},
		Npcs: []Npc{
			testNpc(0x0044, 1, 150),
			testNpc(0x0040, 3, 151),
		},
		Unknown: []UnknownChunk{
			{Kind: 7, Area: 1, Data: []byte{0xDE, 0xAD}},
		},
	}
	data := f.Serialize()
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if !reflect.DeepEqual(back, f) {
		t.Errorf("round trip changed the table\ngot:  %+v\nwant: %+v", back, f)
	}
	again, err := Parse(back.Serialize())
	if err != nil {
		t.Fatalf("second Parse() error: %v", err)
	}
	if !reflect.DeepEqual(again, back) {
		t.Error("second round trip changed the table")
	}
}

func TestSerializeGroupsAreasByFirstAppearance(t *testing.T) {
	f := &File{
		Objects: []Object{
			{Area: 5, Record: testObject(1, 1)},
			{Area: 1, Record: testObject(2, 2)},
			{Area: 5, Record: testObject(3, 3)},
		},
	}
	back, err := Parse(f.Serialize())
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	var areas []uint32
	var types []uint16
	for _, o := range back.Objects {
		areas = append(areas, o.Area)
		types = append(types, o.Record.TypeCode)
	}
	if !reflect.DeepEqual(areas, []uint32{5, 5, 1}) {
		t.Errorf("areas = %v, want [5 5 1]", areas)
	}
	if !reflect.DeepEqual(types, []uint16{1, 3, 2}) {
		t.Errorf("types = %v, want [1 3 2]", types)
	}
}

func TestUnknownChunkSurvivesVerbatim(t *testing.T) {
	payload := []byte{9, 8, 7, 6, 5}
	f := &File{Unknown: []UnknownChunk{{Kind: 0x30, Area: 2, Data: payload}}}
	data := f.Serialize()
	if !bytes.Contains(data, payload) {
		t.Fatal("serialized table does not contain the unknown payload")
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(back.Unknown) != 1 || !bytes.Equal(back.Unknown[0].Data, payload) {
		t.Errorf("unknown chunk = %+v", back.Unknown)
	}
	if back.Unknown[0].Kind != 0x30 || back.Unknown[0].Area != 2 {
		t.Errorf("unknown chunk header = kind %d area %d", back.Unknown[0].Kind, back.Unknown[0].Area)
	}
}

func TestParseCorruptSizePair(t *testing.T) {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, kindObjects)
	buf = binary.LittleEndian.AppendUint32(buf, 100) // does not match
	buf = binary.LittleEndian.AppendUint32(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, 68)
	buf = append(buf, make([]byte, 68)...)
	_, err := Parse(buf)
	if err == nil || !strings.Contains(err.Error(), "does not match") {
		t.Errorf("Parse() error = %v, want a size mismatch", err)
	}
}

func TestParseTruncatedChunk(t *testing.T) {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, kindObjects)
	buf = binary.LittleEndian.AppendUint32(buf, 16+68)
	buf = binary.LittleEndian.AppendUint32(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, 68)
	buf = append(buf, make([]byte, 10)...)
	if _, err := Parse(buf); err == nil {
		t.Error("Parse() accepted a truncated chunk")
	}
}

func TestParseBadRecordSize(t *testing.T) {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, kindNpcs)
	buf = binary.LittleEndian.AppendUint32(buf, 16+70)
	buf = binary.LittleEndian.AppendUint32(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, 70)
	buf = append(buf, make([]byte, 70)...)
	_, err := Parse(buf)
	if err == nil || !strings.Contains(err.Error(), "multiple") {
		t.Errorf("Parse() error = %v, want a record size complaint", err)
	}
}

func TestParseStopsAtTerminator(t *testing.T) {
	data := (&File{}).Serialize()
	data = append(data, 0xFF, 0xFF, 0xFF)
	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(f.Objects) != 0 || len(f.Npcs) != 0 || len(f.Unknown) != 0 {
		t.Errorf("empty table decoded as %+v", f)
	}
}

func TestParseWithoutTerminator(t *testing.T) {
	f := &File{Npcs: []Npc{testNpc(0x0044, 1, 150)}}
	data := f.Serialize()
	back, err := Parse(data[:len(data)-chunkHeaderSize])
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if !reflect.DeepEqual(back, f) {
		t.Errorf("table without terminator decoded as %+v, want %+v", back, f)
	}
}

func TestObjectScriptLabels(t *testing.T) {
	r := ObjectRecord{TypeCode: 0x0145}
	r.SetPropF32(4, 100.2)
	r.SetPropF32(5, 199.8)
	if got := r.ScriptLabels(); !reflect.DeepEqual(got, []int{100, 200}) {
		t.Errorf("ScriptLabels() = %v, want [100 200]", got)
	}

	console := ObjectRecord{TypeCode: 0x008B}
	console.SetPropF32(3, 42)
	if got := console.ScriptLabels(); !reflect.DeepEqual(got, []int{42}) {
		t.Errorf("ScriptLabels() = %v, want [42]", got)
	}

	plain := ObjectRecord{TypeCode: 0x0092}
	if got := plain.ScriptLabels(); got != nil {
		t.Errorf("ScriptLabels() = %v, want nil", got)
	}
}

func TestNpcScriptLabelRounding(t *testing.T) {
	n := NpcRecord{ScriptLabel: 149.9998}
	if got := n.ScriptLabelID(); got != 150 {
		t.Errorf("ScriptLabelID() = %d, want 150", got)
	}
}
