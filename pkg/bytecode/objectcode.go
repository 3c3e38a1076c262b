package bytecode

import (
	"encoding/binary"
	"fmt"
	"sort"
	"unicode/utf16"
)

// ParseObjectCode decodes an object code blob into labeled segments.
//
// labelOffsets maps label ids to byte offsets, -1 marking an undefined
// label. entryLabels seeds instruction discovery; every label reachable
// from them through branch, call and stack argument references is typed
// by the referencing parameter kind. Labeled spans never reached stay
// raw data segments. Every labeled offset delimits a segment, so one
// decode error can never corrupt unrelated spans.
//
// In lenient mode undecodable spans degrade to data segments and the
// problems come back as warnings; otherwise the first problem aborts.
func ParseObjectCode(code []byte, labelOffsets []int32, entryLabels []int, lenient bool) ([]Segment, []string, error) {
	p := &objectCodeParser{
		code:     code,
		lenient:  lenient,
		labelsAt: make(map[int][]int),
		regions:  make(map[int]*codeRegion),
	}
	for id, off := range labelOffsets {
		if off < 0 {
			continue
		}
		if int(off) > len(code) {
			p.warnf("label %d offset %d lies outside the object code", id, off)
			continue
		}
		p.labelsAt[int(off)] = append(p.labelsAt[int(off)], id)
	}
	for off, ids := range p.labelsAt {
		sort.Ints(ids)
		if off < len(code) {
			p.boundaries = append(p.boundaries, off)
		}
	}
	sort.Ints(p.boundaries)

	seen := make(map[int]bool)
	for _, entry := range entryLabels {
		if seen[entry] {
			continue
		}
		seen[entry] = true
		if entry < 0 || entry >= len(labelOffsets) || labelOffsets[entry] < 0 {
			p.warnf("entry label %d is not defined", entry)
			continue
		}
		if err := p.parseRegion(int(labelOffsets[entry]), SegmentInstructions); err != nil {
			return nil, p.warnings, err
		}
	}
	return p.finalize(), p.warnings, nil
}

type codeRegion struct {
	start, end   int
	typ          SegmentType
	instructions []Instruction
}

type objectCodeParser struct {
	code       []byte
	lenient    bool
	labelsAt   map[int][]int
	boundaries []int
	regions    map[int]*codeRegion
	warnings   []string
	warned     map[string]bool
}

func (p *objectCodeParser) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.warned == nil {
		p.warned = make(map[string]bool)
	}
	if p.warned[msg] {
		return
	}
	p.warned[msg] = true
	p.warnings = append(p.warnings, msg)
}

// regionEnd returns the next labeled offset after start, or the end of
// the object code.
func (p *objectCodeParser) regionEnd(start int) int {
	i := sort.SearchInts(p.boundaries, start+1)
	if i < len(p.boundaries) {
		return p.boundaries[i]
	}
	return len(p.code)
}

func (p *objectCodeParser) parseRegion(start int, typ SegmentType) error {
	if _, ok := p.regions[start]; ok {
		return nil
	}
	end := p.regionEnd(start)
	if typ != SegmentInstructions {
		p.regions[start] = &codeRegion{start: start, end: end, typ: typ}
		return nil
	}

	var instructions []Instruction
	pos := start
	for pos < end {
		in, next, err := p.decodeInstruction(pos)
		if err == nil && next > end {
			err = fmt.Errorf("instruction at offset %d crosses the label boundary at %d", pos, end)
		}
		if err != nil {
			if !p.lenient {
				return err
			}
			p.warnf("%v; keeping %d byte(s) as data", err, end-pos)
			break
		}
		instructions = append(instructions, in)
		pos = next
	}
	if pos > start {
		p.regions[start] = &codeRegion{start: start, end: pos, typ: SegmentInstructions, instructions: instructions}
	}
	if pos < end {
		p.regions[pos] = &codeRegion{start: pos, end: end, typ: SegmentData}
	}
	return p.discoverLabels(instructions)
}

// discoverLabels walks a freshly decoded instruction list and recursively
// parses every label it references. Stack convention opcodes receive
// their arguments through the arg_push run directly before them, so the
// run is replayed against the callee's parameter kinds to type pushed
// label values.
func (p *objectCodeParser) discoverLabels(instructions []Instruction) error {
	type pushed struct {
		code uint16
		arg  Arg
	}
	var run []pushed
	for i := range instructions {
		in := &instructions[i]
		switch in.Op.Code {
		case CodeArgPushR, CodeArgPushL, CodeArgPushB, CodeArgPushW, CodeArgPushA, CodeArgPushO, CodeArgPushS:
			run = append(run, pushed{in.Op.Code, in.Args[0]})
			continue
		}
		if in.Op.Stack == StackPush {
			params := in.Op.Params
			if len(run) >= len(params) {
				tail := run[len(run)-len(params):]
				for j, kind := range params {
					if !kind.IsLabel() {
						continue
					}
					switch tail[j].code {
					case CodeArgPushB, CodeArgPushW, CodeArgPushL:
						if err := p.parseLabel(int(tail[j].arg.Value), kind); err != nil {
							return err
						}
					}
				}
			}
			run = run[:0]
			continue
		}
		run = run[:0]
		argIdx := 0
		for _, kind := range in.Op.Params {
			if kind == KindILabelVar {
				for ; argIdx < len(in.Args); argIdx++ {
					if err := p.parseLabel(int(in.Args[argIdx].Value), KindILabel); err != nil {
						return err
					}
				}
				break
			}
			if kind == KindRegVar {
				break
			}
			if kind.IsLabel() {
				if err := p.parseLabel(int(in.Args[argIdx].Value), kind); err != nil {
					return err
				}
			}
			argIdx++
		}
	}
	return nil
}

func (p *objectCodeParser) parseLabel(label int, kind Kind) error {
	var typ SegmentType
	switch kind {
	case KindILabel:
		typ = SegmentInstructions
	case KindDLabel:
		typ = SegmentData
	case KindSLabel:
		typ = SegmentString
	default:
		// A plain label reference reveals nothing about the target.
		return nil
	}
	off, ok := p.labelOffset(label)
	if !ok {
		p.warnf("referenced label %d is not defined", label)
		return nil
	}
	return p.parseRegion(off, typ)
}

func (p *objectCodeParser) labelOffset(label int) (int, bool) {
	for off, ids := range p.labelsAt {
		for _, id := range ids {
			if id == label {
				return off, true
			}
		}
	}
	return 0, false
}

func (p *objectCodeParser) decodeInstruction(pos int) (Instruction, int, error) {
	code := uint16(p.code[pos])
	next := pos + 1
	if code == 0xF8 || code == 0xF9 {
		if next >= len(p.code) {
			return Instruction{}, 0, fmt.Errorf("truncated extended opcode at offset %d", pos)
		}
		code = code<<8 | uint16(p.code[next])
		next++
	}
	op, ok := OpcodeByCode(code)
	if !ok {
		return Instruction{}, 0, fmt.Errorf("unknown opcode 0x%02X at offset %d", code, pos)
	}
	in := Instruction{Op: op}
	if op.Stack == StackPush {
		return in, next, nil
	}
	for _, kind := range op.Params {
		switch kind {
		case KindByte, KindReg, KindRegRef:
			if next+1 > len(p.code) {
				return Instruction{}, 0, truncatedArg(op, pos)
			}
			in.Args = append(in.Args, Arg{Value: int32(p.code[next])})
			next++
		case KindWord, KindLabel, KindILabel, KindDLabel, KindSLabel:
			if next+2 > len(p.code) {
				return Instruction{}, 0, truncatedArg(op, pos)
			}
			in.Args = append(in.Args, Arg{Value: int32(binary.LittleEndian.Uint16(p.code[next:]))})
			next += 2
		case KindDWord, KindFloat:
			if next+4 > len(p.code) {
				return Instruction{}, 0, truncatedArg(op, pos)
			}
			in.Args = append(in.Args, Arg{Value: int32(binary.LittleEndian.Uint32(p.code[next:]))})
			next += 4
		case KindString:
			str, n, err := decodeInlineString(p.code[next:])
			if err != nil {
				return Instruction{}, 0, fmt.Errorf("%v in %s at offset %d", err, op.Mnemonic, pos)
			}
			in.Args = append(in.Args, Arg{Str: str})
			next += n
		case KindILabelVar:
			if next+1 > len(p.code) {
				return Instruction{}, 0, truncatedArg(op, pos)
			}
			count := int(p.code[next])
			next++
			if next+2*count > len(p.code) {
				return Instruction{}, 0, truncatedArg(op, pos)
			}
			for i := 0; i < count; i++ {
				in.Args = append(in.Args, Arg{Value: int32(binary.LittleEndian.Uint16(p.code[next:]))})
				next += 2
			}
		case KindRegVar:
			if next+1 > len(p.code) {
				return Instruction{}, 0, truncatedArg(op, pos)
			}
			count := int(p.code[next])
			next++
			if next+count > len(p.code) {
				return Instruction{}, 0, truncatedArg(op, pos)
			}
			for i := 0; i < count; i++ {
				in.Args = append(in.Args, Arg{Value: int32(p.code[next])})
				next++
			}
		}
	}
	return in, next, nil
}

func truncatedArg(op *Opcode, pos int) error {
	return fmt.Errorf("truncated arguments for %s at offset %d", op.Mnemonic, pos)
}

func decodeInlineString(data []byte) (string, int, error) {
	var units []uint16
	for i := 0; i+2 <= len(data); i += 2 {
		u := binary.LittleEndian.Uint16(data[i:])
		if u == 0 {
			return string(utf16.Decode(units)), i + 2, nil
		}
		units = append(units, u)
	}
	return "", 0, fmt.Errorf("unterminated string")
}

// finalize walks the object code front to back and emits one segment per
// region, turning unclaimed gaps into data segments.
func (p *objectCodeParser) finalize() []Segment {
	var segments []Segment
	emit := func(r *codeRegion) {
		seg := Segment{Type: r.typ, Labels: p.labelsAt[r.start]}
		switch r.typ {
		case SegmentInstructions:
			seg.Instructions = r.instructions
		case SegmentData:
			seg.Data = p.code[r.start:r.end:r.end]
		case SegmentString:
			seg.Str = decodeStringSegment(p.code[r.start:r.end])
		}
		segments = append(segments, seg)
	}
	pos := 0
	for pos < len(p.code) {
		if r, ok := p.regions[pos]; ok {
			emit(r)
			pos = r.end
			continue
		}
		end := p.regionEnd(pos)
		for probe := pos + 1; probe < end; probe++ {
			if _, ok := p.regions[probe]; ok {
				end = probe
				break
			}
		}
		emit(&codeRegion{start: pos, end: end, typ: SegmentData})
		pos = end
	}
	// A label can sit exactly at the end of the code.
	if ids := p.labelsAt[len(p.code)]; len(ids) > 0 {
		segments = append(segments, Segment{Type: SegmentData, Labels: ids})
	}
	return segments
}

func decodeStringSegment(data []byte) string {
	var units []uint16
	for i := 0; i+2 <= len(data); i += 2 {
		u := binary.LittleEndian.Uint16(data[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// WriteObjectCode serializes segments back to object code. It returns
// the code bytes and the label offset table, sized by the largest label
// id and holding -1 for ids no segment claims. Serialization is two
// passes so label arguments can reference segments in either direction.
func WriteObjectCode(segments []Segment) ([]byte, []int32, error) {
	offsets := make([]int, len(segments))
	total := 0
	for i := range segments {
		offsets[i] = total
		total += segments[i].ByteSize()
	}

	labelOffsets := make([]int32, MaxLabel(segments)+1)
	for i := range labelOffsets {
		labelOffsets[i] = -1
	}
	for i := range segments {
		for _, label := range segments[i].Labels {
			if label < 0 {
				return nil, nil, fmt.Errorf("segment %d carries negative label %d", i, label)
			}
			if labelOffsets[label] != -1 {
				return nil, nil, fmt.Errorf("label %d is attached to more than one segment", label)
			}
			labelOffsets[label] = int32(offsets[i])
		}
	}

	buf := make([]byte, 0, total)
	var err error
	for i := range segments {
		seg := &segments[i]
		switch seg.Type {
		case SegmentInstructions:
			for j := range seg.Instructions {
				buf, err = appendInstruction(buf, &seg.Instructions[j])
				if err != nil {
					return nil, nil, fmt.Errorf("segment %d: %w", i, err)
				}
			}
		case SegmentData:
			buf = append(buf, seg.Data...)
		case SegmentString:
			buf = appendUTF16(buf, seg.Str)
		}
	}
	if len(buf) != total {
		return nil, nil, fmt.Errorf("object code size accounting failed: wrote %d bytes, expected %d", len(buf), total)
	}
	return buf, labelOffsets, nil
}

func appendInstruction(buf []byte, in *Instruction) ([]byte, error) {
	op := in.Op
	if op.Code > 0xFF {
		buf = append(buf, byte(op.Code>>8), byte(op.Code))
	} else {
		buf = append(buf, byte(op.Code))
	}
	if op.Stack == StackPush {
		if len(in.Args) != 0 {
			return nil, fmt.Errorf("%s receives arguments through the stack, found %d inline", op.Mnemonic, len(in.Args))
		}
		return buf, nil
	}
	if err := checkArity(op, len(in.Args)); err != nil {
		return nil, err
	}
	argIdx := 0
	for _, kind := range op.Params {
		switch kind {
		case KindByte, KindReg, KindRegRef:
			v := in.Args[argIdx].Value
			if v < 0 || v > 0xFF {
				return nil, argRangeError(op, argIdx, v, "byte")
			}
			buf = append(buf, byte(v))
			argIdx++
		case KindWord, KindLabel, KindILabel, KindDLabel, KindSLabel:
			v := in.Args[argIdx].Value
			if v < 0 || v > 0xFFFF {
				return nil, argRangeError(op, argIdx, v, "word")
			}
			buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
			argIdx++
		case KindDWord, KindFloat:
			buf = binary.LittleEndian.AppendUint32(buf, uint32(in.Args[argIdx].Value))
			argIdx++
		case KindString:
			buf = appendUTF16(buf, in.Args[argIdx].Str)
			argIdx++
		case KindILabelVar:
			rest := in.Args[argIdx:]
			if len(rest) > 0xFF {
				return nil, fmt.Errorf("%s carries %d labels, limit is 255", op.Mnemonic, len(rest))
			}
			buf = append(buf, byte(len(rest)))
			for _, a := range rest {
				if a.Value < 0 || a.Value > 0xFFFF {
					return nil, argRangeError(op, argIdx, a.Value, "word")
				}
				buf = binary.LittleEndian.AppendUint16(buf, uint16(a.Value))
				argIdx++
			}
		case KindRegVar:
			rest := in.Args[argIdx:]
			if len(rest) > 0xFF {
				return nil, fmt.Errorf("%s carries %d registers, limit is 255", op.Mnemonic, len(rest))
			}
			buf = append(buf, byte(len(rest)))
			for _, a := range rest {
				if a.Value < 0 || a.Value > 0xFF {
					return nil, argRangeError(op, argIdx, a.Value, "byte")
				}
				buf = append(buf, byte(a.Value))
				argIdx++
			}
		}
	}
	return buf, nil
}

func checkArity(op *Opcode, got int) error {
	variadic := false
	fixed := len(op.Params)
	if fixed > 0 {
		switch op.Params[fixed-1] {
		case KindILabelVar, KindRegVar:
			variadic = true
			fixed--
		}
	}
	if variadic {
		if got < fixed {
			return fmt.Errorf("%s requires at least %d arguments, found %d", op.Mnemonic, fixed, got)
		}
		return nil
	}
	if got != fixed {
		return fmt.Errorf("%s requires %d arguments, found %d", op.Mnemonic, fixed, got)
	}
	return nil
}

func argRangeError(op *Opcode, idx int, v int32, width string) error {
	return fmt.Errorf("%s argument %d value %d does not fit in a %s", op.Mnemonic, idx+1, v, width)
}

func appendUTF16(buf []byte, s string) []byte {
	for _, u := range utf16.Encode([]rune(s)) {
		buf = binary.LittleEndian.AppendUint16(buf, u)
	}
	return binary.LittleEndian.AppendUint16(buf, 0)
}
