package bin

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"strings"
	"testing"
)

func testFile() *File {
	return &File{
		QuestID:      118,
		Language:     1,
		Name:         "Towards the Future",
		ShortDesc:    "Short version.",
		LongDesc:     "The long version,\nacross lines.",
		ShopItems:    []uint32{0x30003, 0x30102},
		ObjectCode:   []byte{0x01, 0xF8, 0x48, 0x01},
		LabelOffsets: []int32{0, -1, 1},
	}
}

func TestSerializeHeaderLayout(t *testing.T) {
	f := testFile()
	data, err := f.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	wantLen := headerSize + len(f.ObjectCode) + 4*len(f.LabelOffsets)
	if len(data) != wantLen {
		t.Fatalf("len(data) = %d, want %d", len(data), wantLen)
	}
	if got := binary.LittleEndian.Uint32(data[0:]); got != headerSize {
		t.Errorf("object code offset = %d, want %d", got, headerSize)
	}
	if got := binary.LittleEndian.Uint32(data[4:]); got != uint32(headerSize+4) {
		t.Errorf("label table offset = %d, want %d", got, headerSize+4)
	}
	if got := binary.LittleEndian.Uint32(data[8:]); got != uint32(wantLen) {
		t.Errorf("stored size = %d, want %d", got, wantLen)
	}
	if got := binary.LittleEndian.Uint32(data[12:]); got != 0xFFFFFFFF {
		t.Errorf("constant at offset 12 = %#x", got)
	}
	if got := binary.LittleEndian.Uint32(data[16:]); got != 118 {
		t.Errorf("quest id = %d, want 118", got)
	}
	// "T" as UTF-16LE at the name field.
	if data[nameOffset] != 'T' || data[nameOffset+1] != 0 {
		t.Errorf("name field starts with % X", data[nameOffset:nameOffset+2])
	}
	if got := binary.LittleEndian.Uint32(data[shopItemsOffset:]); got != 0x30003 {
		t.Errorf("first shop item = %#x", got)
	}
}

func TestParseSerializeRoundTrip(t *testing.T) {
	f := testFile()
	data, err := f.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	back, warnings, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if !reflect.DeepEqual(back, f) {
		t.Errorf("round trip changed the file\ngot:  %+v\nwant: %+v", back, f)
	}
}

func TestParseTrimsTrailingShopZeros(t *testing.T) {
	f := testFile()
	f.ShopItems = []uint32{5, 0, 9}
	data, err := f.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	back, _, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	// Interior zeros survive, only the unused tail of the 709 slots goes.
	if !reflect.DeepEqual(back.ShopItems, []uint32{5, 0, 9}) {
		t.Errorf("ShopItems = %v, want [5 0 9]", back.ShopItems)
	}
}

func TestParseWarnsOnSizeMismatch(t *testing.T) {
	data, err := testFile().Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	binary.LittleEndian.PutUint32(data[8:], 99)
	back, warnings, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "stored size 99") {
		t.Errorf("warnings = %v, want a size mismatch", warnings)
	}
	if back.QuestID != 118 {
		t.Errorf("QuestID = %d, want 118", back.QuestID)
	}
}

func TestParseRejectsBadLayouts(t *testing.T) {
	small := make([]byte, 100)
	if _, _, err := Parse(small); err == nil {
		t.Error("Parse() accepted a file smaller than the header")
	}

	data, _ := testFile().Serialize()
	binary.LittleEndian.PutUint32(data[0:], 468)
	if _, _, err := Parse(data); err == nil {
		t.Error("Parse() accepted a foreign header layout")
	}

	data, _ = testFile().Serialize()
	binary.LittleEndian.PutUint32(data[4:], uint32(len(data)+8))
	if _, _, err := Parse(data); err == nil {
		t.Error("Parse() accepted a label table outside the file")
	}

	data, _ = testFile().Serialize()
	binary.LittleEndian.PutUint32(data[4:], uint32(len(data)-3))
	if _, _, err := Parse(data); err == nil {
		t.Error("Parse() accepted a misaligned label table")
	}
}

func TestSerializeRejectsTooManyShopItems(t *testing.T) {
	f := testFile()
	f.ShopItems = make([]uint32, shopItemSlots+1)
	if _, err := f.Serialize(); err == nil {
		t.Error("Serialize() accepted too many shop items")
	}
}

func TestSerializeTruncatesLongName(t *testing.T) {
	f := testFile()
	f.Name = strings.Repeat("x", nameUnits+20)
	data, err := f.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	back, _, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(back.Name) != nameUnits {
		t.Errorf("len(Name) = %d, want %d", len(back.Name), nameUnits)
	}
	// The short description right after the name field must be intact.
	if back.ShortDesc != f.ShortDesc {
		t.Errorf("ShortDesc = %q, want %q", back.ShortDesc, f.ShortDesc)
	}
}

func TestEmptyObjectCode(t *testing.T) {
	f := &File{QuestID: 1}
	data, err := f.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if len(data) != headerSize {
		t.Errorf("len(data) = %d, want %d", len(data), headerSize)
	}
	back, _, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(back.ObjectCode) != 0 || len(back.LabelOffsets) != 0 {
		t.Errorf("decoded empty file as %+v", back)
	}
	if !bytes.Equal(data[nameOffset:nameOffset+2*nameUnits], make([]byte, 2*nameUnits)) {
		t.Error("empty name field is not zeroed")
	}
}
