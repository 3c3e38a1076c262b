package qst

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func payload(size int, fill byte) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = fill ^ byte(i)
	}
	return data
}

func testFiles() []File {
	return []File{
		{QuestNo: 118, Name: "quest118.dat", LongName: "quest118.dat", Data: payload(2500, 0xAA)},
		{QuestNo: 118, Name: "quest118.bin", LongName: "quest118.bin", Data: payload(1030, 0x55)},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	files := testFiles()
	data, err := Encode(files)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	back, warnings, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if len(back) != 2 {
		t.Fatalf("len(back) = %d, want 2", len(back))
	}
	for i := range files {
		if back[i].Name != files[i].Name {
			t.Errorf("file %d name = %q, want %q", i, back[i].Name, files[i].Name)
		}
		if back[i].LongName != files[i].LongName {
			t.Errorf("file %d long name = %q, want %q", i, back[i].LongName, files[i].LongName)
		}
		if back[i].QuestNo != files[i].QuestNo {
			t.Errorf("file %d quest no = %d, want %d", i, back[i].QuestNo, files[i].QuestNo)
		}
		if !bytes.Equal(back[i].Data, files[i].Data) {
			t.Errorf("file %d data differs", i)
		}
	}
}

func TestEncodePredictedSize(t *testing.T) {
	files := testFiles()
	data, err := Encode(files)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	// 2500 bytes -> 3 chunks, 1030 bytes -> 2 chunks.
	want := 2*headerSize + 5*chunkRecordSize
	if len(data) != want {
		t.Errorf("len(data) = %d, want %d", len(data), want)
	}
}

func TestEncodeInterleavesChunks(t *testing.T) {
	data, err := Encode(testFiles())
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	chunks := data[2*headerSize:]
	var names []string
	var indexes []int
	for pos := 0; pos < len(chunks); pos += chunkRecordSize {
		names = append(names, trimASCII(chunks[pos+7:pos+7+nameFieldSize]))
		indexes = append(indexes, int(chunks[pos+4]))
	}
	wantNames := []string{"quest118.dat", "quest118.bin", "quest118.dat", "quest118.bin", "quest118.dat"}
	wantIndexes := []int{0, 0, 1, 1, 2}
	for i := range wantNames {
		if names[i] != wantNames[i] || indexes[i] != wantIndexes[i] {
			t.Errorf("chunk %d = %q #%d, want %q #%d", i, names[i], indexes[i], wantNames[i], wantIndexes[i])
		}
	}
}

func TestDecodeIgnoresChunkOrder(t *testing.T) {
	files := testFiles()
	data, err := Encode(files)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	// Swap the first two chunk records in place.
	start := 2 * headerSize
	tmp := make([]byte, chunkRecordSize)
	copy(tmp, data[start:start+chunkRecordSize])
	copy(data[start:], data[start+chunkRecordSize:start+2*chunkRecordSize])
	copy(data[start+chunkRecordSize:], tmp)

	back, warnings, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if !bytes.Equal(back[0].Data, files[0].Data) || !bytes.Equal(back[1].Data, files[1].Data) {
		t.Error("reordered chunks decoded to different data")
	}
}

func TestDecodeMissingMiddleChunk(t *testing.T) {
	single := []File{{QuestNo: 1, Name: "big.dat", Data: payload(5000, 0x11)}}
	data, err := Encode(single)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	// Remove chunk record 2 of 5.
	start := headerSize + 2*chunkRecordSize
	data = append(data[:start:start], data[start+chunkRecordSize:]...)

	back, warnings, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	var missing bool
	for _, w := range warnings {
		if strings.Contains(w, "missing chunk 2") {
			missing = true
		}
	}
	if !missing {
		t.Errorf("warnings = %v, want a missing chunk", warnings)
	}
	if len(back[0].Data) != 5000 {
		t.Errorf("len(Data) = %d, want 5000", len(back[0].Data))
	}
	// The hole left by the missing chunk reads as zeros.
	for i := 2 * chunkPayloadSize; i < 3*chunkPayloadSize; i++ {
		if back[0].Data[i] != 0 {
			t.Errorf("Data[%d] = %d, want 0", i, back[0].Data[i])
			break
		}
	}
}

func TestDecodeMissingLastChunk(t *testing.T) {
	single := []File{{QuestNo: 1, Name: "big.dat", Data: payload(5000, 0x11)}}
	data, err := Encode(single)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	start := headerSize + 4*chunkRecordSize
	data = data[:start]

	back, warnings, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	var missing, mismatch bool
	for _, w := range warnings {
		if strings.Contains(w, "missing chunk 4") {
			missing = true
		}
		if strings.Contains(w, "header expected") {
			mismatch = true
		}
	}
	if !missing || !mismatch {
		t.Errorf("warnings = %v, want missing chunk and size mismatch", warnings)
	}
	// Padded out to the size the header declared.
	if len(back[0].Data) != 5000 {
		t.Errorf("len(Data) = %d, want 5000", len(back[0].Data))
	}
}

func TestDecodeClampsOversizedChunk(t *testing.T) {
	data, err := Encode([]File{{Name: "a.dat", Data: payload(100, 1)}})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	binary.LittleEndian.PutUint32(data[headerSize+1048:], 2000)
	back, warnings, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	var clamped bool
	for _, w := range warnings {
		if strings.Contains(w, "clamped") {
			clamped = true
		}
	}
	if !clamped {
		t.Errorf("warnings = %v, want a clamp", warnings)
	}
	if len(back[0].Data) != chunkPayloadSize {
		t.Errorf("len(Data) = %d, want %d", len(back[0].Data), chunkPayloadSize)
	}
}

func TestDecodeDuplicateChunk(t *testing.T) {
	data, err := Encode([]File{{Name: "a.dat", Data: payload(100, 1)}})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	record := make([]byte, chunkRecordSize)
	copy(record, data[headerSize:headerSize+chunkRecordSize])
	data = append(data, record...)

	_, warnings, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	var dup bool
	for _, w := range warnings {
		if strings.Contains(w, "duplicate chunk 0") {
			dup = true
		}
	}
	if !dup {
		t.Errorf("warnings = %v, want a duplicate chunk", warnings)
	}
}

func TestEncodeNameTooLong(t *testing.T) {
	_, err := Encode([]File{{Name: "this-name-is-way-too-long.dat"}})
	if !errors.Is(err, ErrNameTooLong) {
		t.Errorf("Encode() error = %v, want ErrNameTooLong", err)
	}
	_, err = Encode([]File{{Name: "ok.dat", LongName: strings.Repeat("x", longNameFieldSize+1)}})
	if !errors.Is(err, ErrNameTooLong) {
		t.Errorf("Encode() error = %v, want ErrNameTooLong for the long name", err)
	}
}

func TestDecodeRejectsForeignLayouts(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"dreamcast", append([]byte{0x44}, make([]byte, 200)...)},
		{"download", append([]byte{0xA6}, make([]byte, 200)...)},
		{"garbage", bytes.Repeat([]byte{0x99}, 200)},
		{"too small", []byte{0x58, 0x00, 0x44}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Decode(tt.data); !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("Decode() error = %v, want ErrUnsupportedFormat", err)
			}
		})
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	data, err := Encode([]File{{Name: "a.dat", Data: payload(10, 2)}})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	data = append(data, 1, 2, 3)
	_, warnings, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	var trailing bool
	for _, w := range warnings {
		if strings.Contains(w, "trailing") {
			trailing = true
		}
	}
	if !trailing {
		t.Errorf("warnings = %v, want trailing bytes", warnings)
	}
}
