// Package qst implements the quest container format. A container holds
// one 88 byte header per embedded file followed by a stream of 1056 byte
// chunk records that interleave the file payloads in 1024 byte pieces.
package qst

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	headerSize       = 88
	chunkRecordSize  = 1056
	chunkPayloadSize = 1024

	nameFieldSize     = 16
	longNameFieldSize = 24
)

var (
	// ErrUnsupportedFormat marks containers from game versions this
	// package does not decode, and byte streams that are no container
	// at all.
	ErrUnsupportedFormat = errors.New("qst: unsupported container format")
	// ErrNameTooLong marks embedded file names that cannot fit the
	// fixed header fields.
	ErrNameTooLong = errors.New("qst: file name too long")
)

// File is one embedded file of a container.
type File struct {
	QuestNo  uint16
	Name     string // chunk records reference headers through this name
	LongName string
	Data     []byte
}

// Decode unpacks a container into its embedded files, in header order.
// Chunk damage that can be repaired or tolerated is reported through
// warnings; only structural problems return an error.
func Decode(data []byte) ([]File, []string, error) {
	if len(data) < headerSize {
		return nil, nil, fmt.Errorf("%w: %d bytes is too small", ErrUnsupportedFormat, len(data))
	}
	switch {
	case data[0] == 0x58 && data[2] == 0x44:
		// Blue Burst layout, the one this package reads.
	case data[0] == 0x44:
		return nil, nil, fmt.Errorf("%w: Dreamcast/GameCube layout", ErrUnsupportedFormat)
	case data[0] == 0xA6:
		return nil, nil, fmt.Errorf("%w: download quest layout", ErrUnsupportedFormat)
	default:
		return nil, nil, fmt.Errorf("%w: unrecognized leading bytes", ErrUnsupportedFormat)
	}

	d := &decoder{files: make(map[string]*partialFile)}
	pos := 0
	for pos < len(data) {
		if len(data)-pos >= headerSize && data[pos] == 0x58 && data[pos+2] == 0x44 {
			d.header(data[pos : pos+headerSize])
			pos += headerSize
			continue
		}
		if len(data)-pos < chunkRecordSize {
			d.warnf("%d trailing bytes after the last chunk record", len(data)-pos)
			break
		}
		d.chunk(data[pos : pos+chunkRecordSize])
		pos += chunkRecordSize
	}
	return d.finish(), d.warnings, nil
}

type partialFile struct {
	questNo      uint16
	name         string
	longName     string
	expectedSize uint32
	buf          []byte
	written      int
	chunks       map[int]bool
}

type decoder struct {
	files    map[string]*partialFile
	order    []*partialFile
	warnings []string
}

func (d *decoder) warnf(format string, args ...any) {
	d.warnings = append(d.warnings, fmt.Sprintf(format, args...))
}

func (d *decoder) header(h []byte) {
	name := trimASCII(h[42 : 42+nameFieldSize])
	if _, ok := d.files[name]; ok {
		d.warnf("duplicate header for %q", name)
		return
	}
	f := &partialFile{
		questNo:      binary.LittleEndian.Uint16(h[4:]),
		name:         name,
		longName:     trimASCII(h[62 : 62+longNameFieldSize]),
		expectedSize: binary.LittleEndian.Uint32(h[58:]),
		chunks:       make(map[int]bool),
	}
	d.files[name] = f
	d.order = append(d.order, f)
}

func (d *decoder) chunk(c []byte) {
	index := int(c[4])
	name := trimASCII(c[7 : 7+nameFieldSize])
	size := int(binary.LittleEndian.Uint32(c[1048:]))
	if size > chunkPayloadSize {
		d.warnf("chunk %d of %q declares %d bytes, clamped to %d", index, name, size, chunkPayloadSize)
		size = chunkPayloadSize
	}
	f, ok := d.files[name]
	if !ok {
		d.warnf("chunk for unknown file %q", name)
		f = &partialFile{name: name, chunks: make(map[int]bool)}
		d.files[name] = f
		d.order = append(d.order, f)
	}
	if f.chunks[index] {
		d.warnf("duplicate chunk %d for %q, overwriting", index, name)
	}
	f.chunks[index] = true

	start := index * chunkPayloadSize
	if need := start + size; need > len(f.buf) {
		f.buf = append(f.buf, make([]byte, need-len(f.buf))...)
	}
	copy(f.buf[start:], c[24:24+size])
	if end := start + size; end > f.written {
		f.written = end
	}
}

func (d *decoder) finish() []File {
	files := make([]File, 0, len(d.order))
	for _, f := range d.order {
		length := f.written
		if int(f.expectedSize) > length {
			length = int(f.expectedSize)
		}
		if f.expectedSize != uint32(f.written) {
			d.warnf("file %q holds %d bytes, header expected %d", f.name, f.written, f.expectedSize)
		}
		chunkCount := (length + chunkPayloadSize - 1) / chunkPayloadSize
		for i := 0; i < chunkCount; i++ {
			if !f.chunks[i] {
				d.warnf("file %q is missing chunk %d", f.name, i)
			}
		}
		if length > len(f.buf) {
			f.buf = append(f.buf, make([]byte, length-len(f.buf))...)
		}
		files = append(files, File{
			QuestNo:  f.questNo,
			Name:     f.name,
			LongName: f.longName,
			Data:     f.buf[:length:length],
		})
	}
	return files
}

// Encode packs files into a container: every header first, in input
// order, then the chunk records in round robin so the payloads stay
// interleaved the way the game streams them.
func Encode(files []File) ([]byte, error) {
	predicted := 0
	for i := range files {
		f := &files[i]
		if len(f.Name) > nameFieldSize {
			return nil, fmt.Errorf("%w: %q exceeds %d bytes", ErrNameTooLong, f.Name, nameFieldSize)
		}
		if len(f.LongName) > longNameFieldSize {
			return nil, fmt.Errorf("%w: %q exceeds %d bytes", ErrNameTooLong, f.LongName, longNameFieldSize)
		}
		if chunkCount(len(f.Data)) > 256 {
			return nil, fmt.Errorf("qst: %q needs %d chunks, the index field allows 256", f.Name, chunkCount(len(f.Data)))
		}
		predicted += headerSize + chunkCount(len(f.Data))*chunkRecordSize
	}

	buf := make([]byte, 0, predicted)
	for i := range files {
		buf = appendHeader(buf, &files[i])
	}
	for round := 0; ; round++ {
		emitted := false
		for i := range files {
			f := &files[i]
			start := round * chunkPayloadSize
			if start >= len(f.Data) {
				continue
			}
			end := start + chunkPayloadSize
			if end > len(f.Data) {
				end = len(f.Data)
			}
			buf = appendChunkRecord(buf, f.Name, round, f.Data[start:end])
			emitted = true
		}
		if !emitted {
			break
		}
	}
	if len(buf) != predicted {
		return nil, fmt.Errorf("qst: container size accounting failed: wrote %d bytes, predicted %d", len(buf), predicted)
	}
	return buf, nil
}

func chunkCount(size int) int {
	return (size + chunkPayloadSize - 1) / chunkPayloadSize
}

func appendHeader(buf []byte, f *File) []byte {
	h := make([]byte, headerSize)
	binary.LittleEndian.PutUint16(h[0:], 0x0058)
	binary.LittleEndian.PutUint16(h[2:], 0x0044)
	binary.LittleEndian.PutUint16(h[4:], f.QuestNo)
	copy(h[42:42+nameFieldSize], f.Name)
	binary.LittleEndian.PutUint32(h[58:], uint32(len(f.Data)))
	copy(h[62:62+longNameFieldSize], f.LongName)
	return append(buf, h...)
}

func appendChunkRecord(buf []byte, name string, index int, payload []byte) []byte {
	c := make([]byte, chunkRecordSize)
	c[0] = 28
	c[1] = 4
	c[2] = 19
	c[4] = byte(index)
	copy(c[7:7+nameFieldSize], name)
	copy(c[24:], payload)
	binary.LittleEndian.PutUint32(c[1048:], uint32(len(payload)))
	return append(buf, c...)
}

func trimASCII(field []byte) string {
	end := len(field)
	for i, b := range field {
		if b == 0 {
			end = i
			break
		}
	}
	return string(field[:end])
}
