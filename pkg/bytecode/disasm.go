package bytecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Disassemble renders segments as assembly text, one element per line.
// The output reassembles to segments equal to the input: arg_push runs
// fold back into the stack convention opcode they feed only when
// reassembly would regenerate the exact same run.
func Disassemble(segments []Segment) []string {
	var lines []string
	for i := range segments {
		seg := &segments[i]
		for _, label := range seg.Labels {
			lines = append(lines, fmt.Sprintf("%d:", label))
		}
		switch seg.Type {
		case SegmentInstructions:
			lines = append(lines, disassembleInstructions(seg.Instructions)...)
		case SegmentData:
			lines = append(lines, dataLines(seg.Data)...)
		case SegmentString:
			lines = append(lines, "    .string "+strconv.Quote(seg.Str))
		}
	}
	return lines
}

func disassembleInstructions(instructions []Instruction) []string {
	var lines []string
	var run []*Instruction
	flush := func(upTo int) {
		for _, p := range run[:upTo] {
			lines = append(lines, rawLine(p))
		}
		run = append(run[:0], run[upTo:]...)
	}
	for i := range instructions {
		in := &instructions[i]
		if isArgPush(in.Op.Code) {
			run = append(run, in)
			continue
		}
		if in.Op.Stack == StackPush && foldable(in.Op, run) {
			flush(len(run) - len(in.Op.Params))
			lines = append(lines, foldedLine(in.Op, run))
			run = run[:0]
			continue
		}
		flush(len(run))
		lines = append(lines, rawLine(in))
	}
	flush(len(run))
	return lines
}

func isArgPush(code uint16) bool {
	switch code {
	case CodeArgPushR, CodeArgPushL, CodeArgPushB, CodeArgPushW, CodeArgPushA, CodeArgPushO, CodeArgPushS:
		return true
	}
	return false
}

// foldable reports whether the trailing pushes are exactly the run the
// assembler would synthesize for the opcode's parameters.
func foldable(op *Opcode, run []*Instruction) bool {
	if len(run) < len(op.Params) {
		return false
	}
	tail := run[len(run)-len(op.Params):]
	for i, kind := range op.Params {
		code := tail[i].Op.Code
		switch kind {
		case KindByte:
			if code != CodeArgPushB && code != CodeArgPushR {
				return false
			}
		case KindWord, KindLabel, KindILabel, KindDLabel, KindSLabel:
			if code != CodeArgPushW && code != CodeArgPushR {
				return false
			}
		case KindDWord, KindFloat:
			if code != CodeArgPushL && code != CodeArgPushR {
				return false
			}
		case KindRegRef:
			if code != CodeArgPushA {
				return false
			}
		case KindString:
			if code != CodeArgPushS {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func foldedLine(op *Opcode, run []*Instruction) string {
	tail := run[len(run)-len(op.Params):]
	args := make([]string, len(op.Params))
	for i, kind := range op.Params {
		p := tail[i]
		switch {
		case p.Op.Code == CodeArgPushR, p.Op.Code == CodeArgPushA:
			args[i] = fmt.Sprintf("r%d", p.Args[0].Value)
		case kind == KindString:
			args[i] = strconv.Quote(p.Args[0].Str)
		case kind == KindFloat:
			args[i] = formatFloat(p.Args[0].Value)
		default:
			args[i] = strconv.FormatInt(int64(p.Args[0].Value), 10)
		}
	}
	return "    " + op.Mnemonic + " " + strings.Join(args, ", ")
}

func rawLine(in *Instruction) string {
	if len(in.Args) == 0 {
		return "    " + in.Op.Mnemonic
	}
	args := make([]string, 0, len(in.Args))
	argIdx := 0
	for _, kind := range in.Op.Params {
		if kind == KindILabelVar || kind == KindRegVar {
			for ; argIdx < len(in.Args); argIdx++ {
				args = append(args, formatArg(kind, &in.Args[argIdx]))
			}
			break
		}
		args = append(args, formatArg(kind, &in.Args[argIdx]))
		argIdx++
	}
	return "    " + in.Op.Mnemonic + " " + strings.Join(args, ", ")
}

func formatArg(kind Kind, arg *Arg) string {
	switch kind {
	case KindReg, KindRegRef, KindRegVar:
		return fmt.Sprintf("r%d", arg.Value)
	case KindString:
		return strconv.Quote(arg.Str)
	case KindFloat:
		return formatFloat(arg.Value)
	default:
		return strconv.FormatInt(int64(arg.Value), 10)
	}
}

func formatFloat(bits int32) string {
	s := strconv.FormatFloat(float64(math.Float32frombits(uint32(bits))), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func dataLines(data []byte) []string {
	if len(data) == 0 {
		return []string{"    .data"}
	}
	var lines []string
	for start := 0; start < len(data); start += 16 {
		end := start + 16
		if end > len(data) {
			end = len(data)
		}
		var b strings.Builder
		b.WriteString("    .data")
		for _, v := range data[start:end] {
			fmt.Fprintf(&b, " %02x", v)
		}
		lines = append(lines, b.String())
	}
	return lines
}
