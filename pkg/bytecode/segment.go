package bytecode

import (
	"fmt"
	"unicode/utf16"
)

// Arg is a decoded instruction argument. Numeric kinds, registers and
// labels live in Value; KindFloat stores the raw IEEE 754 bits in Value;
// KindString uses Str.
type Arg struct {
	Value int32
	Str   string
}

// Instruction is one decoded instruction. For stack convention opcodes
// Args is always empty; the values travel in preceding arg_push
// instructions.
type Instruction struct {
	Op   *Opcode
	Args []Arg
}

// ByteSize returns the encoded size of the instruction in bytes.
func (in *Instruction) ByteSize() int {
	size := in.Op.CodeSize()
	if in.Op.Stack == StackPush {
		return size
	}
	argIdx := 0
	for _, p := range in.Op.Params {
		switch p {
		case KindString:
			size += 2*len(utf16.Encode([]rune(in.Args[argIdx].Str))) + 2
			argIdx++
		case KindILabelVar:
			size += 1 + 2*(len(in.Args)-argIdx)
			argIdx = len(in.Args)
		case KindRegVar:
			size += 1 + (len(in.Args) - argIdx)
			argIdx = len(in.Args)
		default:
			size += p.Size()
			argIdx++
		}
	}
	return size
}

// SegmentType discriminates the three segment representations.
type SegmentType uint8

const (
	// SegmentInstructions holds decoded instructions.
	SegmentInstructions SegmentType = iota
	// SegmentData holds raw bytes the scripts reference as data.
	SegmentData
	// SegmentString holds one zero-terminated UTF-16LE string.
	SegmentString
)

func (t SegmentType) String() string {
	switch t {
	case SegmentInstructions:
		return "instructions"
	case SegmentData:
		return "data"
	case SegmentString:
		return "string"
	}
	return fmt.Sprintf("SegmentType(%d)", uint8(t))
}

// Segment is a labeled span of object code. Labels holds every label id
// whose offset is the start of this segment, in ascending order.
type Segment struct {
	Type         SegmentType
	Labels       []int
	Instructions []Instruction
	Data         []byte
	Str          string
}

// ByteSize returns the encoded size of the segment in bytes.
func (s *Segment) ByteSize() int {
	switch s.Type {
	case SegmentInstructions:
		size := 0
		for i := range s.Instructions {
			size += s.Instructions[i].ByteSize()
		}
		return size
	case SegmentData:
		return len(s.Data)
	case SegmentString:
		return 2*len(utf16.Encode([]rune(s.Str))) + 2
	}
	return 0
}

// MaxLabel returns the largest label id attached to any of the segments,
// or -1 when none carry labels.
func MaxLabel(segments []Segment) int {
	max := -1
	for i := range segments {
		for _, l := range segments[i].Labels {
			if l > max {
				max = l
			}
		}
	}
	return max
}
