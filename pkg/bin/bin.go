// Package bin implements the script container format: a fixed 4652 byte
// header with quest metadata, the object code region, and the label
// offset table that maps label ids to object code offsets.
package bin

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

const (
	headerSize = 4652

	nameUnits      = 64
	shortDescUnits = 256
	longDescUnits  = 576
	shopItemSlots  = 709

	nameOffset      = 24
	shortDescOffset = 152
	longDescOffset  = 664
	shopItemsOffset = 1816
)

// File is a decoded script container. ObjectCode is the raw code region;
// LabelOffsets holds one object code offset per label id, -1 for labels
// that are not defined.
type File struct {
	QuestID      uint32
	Language     uint32
	Name         string
	ShortDesc    string
	LongDesc     string
	ShopItems    []uint32
	ObjectCode   []byte
	LabelOffsets []int32
}

// Parse decodes a script container. A stored size field that disagrees
// with the actual length is reported as a warning, not an error, since
// the surrounding container already authenticated the payload length.
func Parse(data []byte) (*File, []string, error) {
	if len(data) < headerSize {
		return nil, nil, fmt.Errorf("bin: %d bytes is too small for the %d byte header", len(data), headerSize)
	}
	objectCodeOffset := binary.LittleEndian.Uint32(data[0:])
	tableOffset := binary.LittleEndian.Uint32(data[4:])
	storedSize := binary.LittleEndian.Uint32(data[8:])
	if objectCodeOffset != headerSize {
		return nil, nil, fmt.Errorf("bin: unsupported header layout, object code starts at %d", objectCodeOffset)
	}
	if tableOffset < objectCodeOffset || int(tableOffset) > len(data) {
		return nil, nil, fmt.Errorf("bin: label offset table at %d is outside the file", tableOffset)
	}
	if (len(data)-int(tableOffset))%4 != 0 {
		return nil, nil, fmt.Errorf("bin: label offset table length %d is not a multiple of 4", len(data)-int(tableOffset))
	}

	var warnings []string
	if int(storedSize) != len(data) {
		warnings = append(warnings, fmt.Sprintf("stored size %d does not match the actual %d bytes", storedSize, len(data)))
	}

	f := &File{
		QuestID:   binary.LittleEndian.Uint32(data[16:]),
		Language:  binary.LittleEndian.Uint32(data[20:]),
		Name:      decodeFixedUTF16(data[nameOffset:], nameUnits),
		ShortDesc: decodeFixedUTF16(data[shortDescOffset:], shortDescUnits),
		LongDesc:  decodeFixedUTF16(data[longDescOffset:], longDescUnits),
	}
	items := make([]uint32, 0, shopItemSlots)
	for i := 0; i < shopItemSlots; i++ {
		items = append(items, binary.LittleEndian.Uint32(data[shopItemsOffset+4*i:]))
	}
	for len(items) > 0 && items[len(items)-1] == 0 {
		items = items[:len(items)-1]
	}
	if len(items) > 0 {
		f.ShopItems = items
	}

	f.ObjectCode = append([]byte(nil), data[objectCodeOffset:tableOffset]...)
	count := (len(data) - int(tableOffset)) / 4
	f.LabelOffsets = make([]int32, count)
	for i := 0; i < count; i++ {
		f.LabelOffsets[i] = int32(binary.LittleEndian.Uint32(data[int(tableOffset)+4*i:]))
	}
	return f, warnings, nil
}

// Serialize writes the container back out. Metadata strings that exceed
// their fixed fields are cut to fit, matching what the game tools do.
func (f *File) Serialize() ([]byte, error) {
	if len(f.ShopItems) > shopItemSlots {
		return nil, fmt.Errorf("bin: %d shop items exceed the %d slots", len(f.ShopItems), shopItemSlots)
	}
	tableOffset := headerSize + len(f.ObjectCode)
	total := tableOffset + 4*len(f.LabelOffsets)

	buf := make([]byte, headerSize, total)
	binary.LittleEndian.PutUint32(buf[0:], headerSize)
	binary.LittleEndian.PutUint32(buf[4:], uint32(tableOffset))
	binary.LittleEndian.PutUint32(buf[8:], uint32(total))
	binary.LittleEndian.PutUint32(buf[12:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(buf[16:], f.QuestID)
	binary.LittleEndian.PutUint32(buf[20:], f.Language)
	encodeFixedUTF16(buf[nameOffset:], f.Name, nameUnits)
	encodeFixedUTF16(buf[shortDescOffset:], f.ShortDesc, shortDescUnits)
	encodeFixedUTF16(buf[longDescOffset:], f.LongDesc, longDescUnits)
	for i, item := range f.ShopItems {
		binary.LittleEndian.PutUint32(buf[shopItemsOffset+4*i:], item)
	}

	buf = append(buf, f.ObjectCode...)
	for _, off := range f.LabelOffsets {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(off))
	}
	return buf, nil
}

func decodeFixedUTF16(data []byte, units int) string {
	var out []uint16
	for i := 0; i < units; i++ {
		u := binary.LittleEndian.Uint16(data[2*i:])
		if u == 0 {
			break
		}
		out = append(out, u)
	}
	return string(utf16.Decode(out))
}

func encodeFixedUTF16(dst []byte, s string, units int) {
	encoded := utf16.Encode([]rune(s))
	if len(encoded) > units {
		encoded = encoded[:units]
	}
	for i, u := range encoded {
		binary.LittleEndian.PutUint16(dst[2*i:], u)
	}
}
