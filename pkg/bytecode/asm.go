package bytecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AssemblyError is one problem found while assembling, tied to a 1-based
// source line so editors can mark it.
type AssemblyError struct {
	Line int
	Msg  string
}

func (e AssemblyError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// AssemblyResult carries everything one assembler run produced. Errors
// never abort the run; the assembler keeps going so a single pass can
// report every problem in the source.
type AssemblyResult struct {
	Segments []Segment
	Warnings []string
	Errors   []AssemblyError
}

// Err folds the accumulated errors into a single error, or nil.
func (r *AssemblyResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("assembly failed: %s", strings.Join(msgs, "; "))
}

// Assemble translates assembly source into segments.
//
// A line of the form "N:" starts a new segment labeled N; consecutive
// label lines attach to the same segment. The first content line fixes
// the segment representation: instructions, ".data" with hex bytes, or
// ".string" with one quoted literal. Arguments of stack convention
// opcodes are expanded into the matching arg_push instructions, so the
// source never spells the pushes out by hand.
func Assemble(source string) *AssemblyResult {
	a := &assembler{labels: make(map[int]int)}
	for i, raw := range strings.Split(source, "\n") {
		a.line(i+1, raw)
	}
	return &AssemblyResult{Segments: a.segments, Warnings: a.warnings, Errors: a.errors}
}

type assembler struct {
	segments []Segment
	errors   []AssemblyError
	warnings []string
	labels   map[int]int // label id -> defining line
	open     bool        // last segment still accepts labels
}

func (a *assembler) errorf(line int, format string, args ...any) {
	a.errors = append(a.errors, AssemblyError{Line: line, Msg: fmt.Sprintf(format, args...)})
}

func (a *assembler) current() *Segment {
	if len(a.segments) == 0 {
		return nil
	}
	return &a.segments[len(a.segments)-1]
}

func (a *assembler) line(n int, raw string) {
	text := strings.TrimSpace(stripComment(raw))
	if text == "" {
		return
	}
	if label, ok := parseLabelLine(text); ok {
		a.defineLabel(n, label)
		return
	}
	if strings.HasPrefix(text, ".") {
		a.directive(n, text)
		return
	}
	a.instruction(n, text)
}

func (a *assembler) defineLabel(n, label int) {
	if label < 0 || label > 0xFFFF {
		a.errorf(n, "label %d is out of range 0..65535", label)
		return
	}
	if prev, ok := a.labels[label]; ok {
		a.errorf(n, "label %d already defined on line %d", label, prev)
		return
	}
	a.labels[label] = n
	if cur := a.current(); cur != nil && a.open {
		cur.Labels = append(cur.Labels, label)
		return
	}
	a.segments = append(a.segments, Segment{Type: SegmentInstructions, Labels: []int{label}})
	a.open = true
}

// content returns the segment the next content line belongs to, creating
// an unlabeled one when the source starts without a label.
func (a *assembler) content(n int, typ SegmentType) *Segment {
	cur := a.current()
	if cur == nil {
		a.errorf(n, "content before the first label")
		a.segments = append(a.segments, Segment{Type: typ})
		a.open = false
		return a.current()
	}
	if a.open {
		cur.Type = typ
		a.open = false
		return cur
	}
	if cur.Type != typ {
		a.errorf(n, "cannot mix %s content into a %s segment", typ, cur.Type)
		return nil
	}
	return cur
}

func (a *assembler) directive(n int, text string) {
	name, rest, _ := strings.Cut(text, " ")
	switch name {
	case ".data":
		seg := a.content(n, SegmentData)
		if seg == nil {
			return
		}
		for _, tok := range strings.Fields(rest) {
			b, err := strconv.ParseUint(tok, 16, 8)
			if err != nil {
				a.errorf(n, "bad data byte %q", tok)
				return
			}
			seg.Data = append(seg.Data, byte(b))
		}
	case ".string":
		seg := a.content(n, SegmentString)
		if seg == nil {
			return
		}
		if seg.Str != "" {
			a.errorf(n, "segment already holds a string")
			return
		}
		s, err := strconv.Unquote(strings.TrimSpace(rest))
		if err != nil {
			a.errorf(n, "bad string literal: %v", err)
			return
		}
		seg.Str = s
	default:
		a.errorf(n, "unknown directive %s", name)
	}
}

func (a *assembler) instruction(n int, text string) {
	seg := a.content(n, SegmentInstructions)
	if seg == nil {
		return
	}
	mnemonic, rest, _ := strings.Cut(text, " ")
	op, ok := OpcodeByMnemonic(mnemonic)
	if !ok {
		a.errorf(n, "unknown mnemonic %q", mnemonic)
		return
	}
	var tokens []argToken
	if strings.TrimSpace(rest) != "" {
		for _, raw := range splitArgs(rest) {
			tok, err := classifyToken(raw)
			if err != nil {
				a.errorf(n, "%v", err)
				return
			}
			tokens = append(tokens, tok)
		}
	}
	if err := checkArity(op, len(tokens)); err != nil {
		a.errorf(n, "%v", err)
		return
	}
	if op.Stack == StackPush {
		pushes, err := expandStackArgs(op, tokens)
		if err != nil {
			a.errorf(n, "%v", err)
			return
		}
		seg.Instructions = append(seg.Instructions, pushes...)
		seg.Instructions = append(seg.Instructions, Instruction{Op: op})
		return
	}
	in := Instruction{Op: op}
	tokIdx := 0
	for _, kind := range op.Params {
		if kind == KindILabelVar || kind == KindRegVar {
			for ; tokIdx < len(tokens); tokIdx++ {
				arg, err := inlineArg(kind, &tokens[tokIdx])
				if err != nil {
					a.errorf(n, "%v", err)
					return
				}
				in.Args = append(in.Args, arg)
			}
			break
		}
		arg, err := inlineArg(kind, &tokens[tokIdx])
		if err != nil {
			a.errorf(n, "%v", err)
			return
		}
		in.Args = append(in.Args, arg)
		tokIdx++
	}
	seg.Instructions = append(seg.Instructions, in)
}

// inlineArg converts one source token into an argument of the declared
// kind for an inline convention opcode.
func inlineArg(kind Kind, tok *argToken) (Arg, error) {
	switch kind {
	case KindReg, KindRegRef, KindRegVar:
		if !tok.isReg {
			return Arg{}, fmt.Errorf("expected a register, found %q", tok.text)
		}
		return Arg{Value: int32(tok.reg)}, nil
	case KindString:
		if !tok.isStr {
			return Arg{}, fmt.Errorf("expected a string literal, found %q", tok.text)
		}
		return Arg{Str: tok.str}, nil
	case KindFloat:
		if tok.isReg || tok.isStr {
			return Arg{}, fmt.Errorf("expected a float, found %q", tok.text)
		}
		bits, err := tok.floatValue()
		if err != nil {
			return Arg{}, err
		}
		return Arg{Value: bits}, nil
	case KindILabelVar:
		kind = KindILabel
	}
	if tok.isReg || tok.isStr {
		return Arg{}, fmt.Errorf("expected a number, found %q", tok.text)
	}
	v, err := tok.intValue(kind)
	if err != nil {
		return Arg{}, err
	}
	return Arg{Value: v}, nil
}

// expandStackArgs synthesizes the arg_push run for a stack convention
// opcode. Registers push their value with arg_pushr, or their reference
// with arg_pusha when the parameter wants one. Literals push with the
// width the parameter declares: arg_pushb, arg_pushw (also for labels),
// or arg_pushl.
func expandStackArgs(op *Opcode, tokens []argToken) ([]Instruction, error) {
	pushes := make([]Instruction, 0, len(tokens))
	push := func(code uint16, arg Arg) {
		p, _ := OpcodeByCode(code)
		pushes = append(pushes, Instruction{Op: p, Args: []Arg{arg}})
	}
	for i, kind := range op.Params {
		tok := &tokens[i]
		switch {
		case tok.isStr:
			if kind != KindString {
				return nil, fmt.Errorf("argument %d of %s cannot be a string", i+1, op.Mnemonic)
			}
			push(CodeArgPushS, Arg{Str: tok.str})
		case tok.isReg:
			if kind == KindRegRef {
				push(CodeArgPushA, Arg{Value: int32(tok.reg)})
			} else {
				push(CodeArgPushR, Arg{Value: int32(tok.reg)})
			}
		default:
			switch kind {
			case KindString:
				return nil, fmt.Errorf("argument %d of %s must be a string literal", i+1, op.Mnemonic)
			case KindRegRef, KindReg:
				return nil, fmt.Errorf("argument %d of %s must be a register", i+1, op.Mnemonic)
			case KindFloat:
				bits, err := tok.floatValue()
				if err != nil {
					return nil, err
				}
				push(CodeArgPushL, Arg{Value: bits})
			case KindByte:
				v, err := tok.intValue(KindByte)
				if err != nil {
					return nil, err
				}
				push(CodeArgPushB, Arg{Value: v})
			case KindWord, KindLabel, KindILabel, KindDLabel, KindSLabel:
				v, err := tok.intValue(KindWord)
				if err != nil {
					return nil, err
				}
				push(CodeArgPushW, Arg{Value: v})
			default:
				v, err := tok.intValue(KindDWord)
				if err != nil {
					return nil, err
				}
				push(CodeArgPushL, Arg{Value: v})
			}
		}
	}
	return pushes, nil
}

func stripComment(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '/':
			if !inString && i+1 < len(line) && line[i+1] == '/' {
				return line[:i]
			}
		}
	}
	return line
}

func parseLabelLine(text string) (int, bool) {
	if !strings.HasSuffix(text, ":") {
		return 0, false
	}
	num := strings.TrimSpace(strings.TrimSuffix(text, ":"))
	if num == "" {
		return 0, false
	}
	for _, r := range num {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(num)
	if err != nil {
		return 0, false
	}
	return v, true
}

// token classification for instruction arguments.
type argToken struct {
	text  string
	isReg bool
	isStr bool
	reg   int
	str   string
}

func splitArgs(rest string) []string {
	var out []string
	inString := false
	start := 0
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case ',':
			if !inString {
				out = append(out, strings.TrimSpace(rest[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(rest[start:]))
	return out
}

func classifyToken(tok string) (argToken, error) {
	t := argToken{text: tok}
	if tok == "" {
		return t, fmt.Errorf("empty argument")
	}
	if strings.HasPrefix(tok, "\"") {
		s, err := strconv.Unquote(tok)
		if err != nil {
			return t, fmt.Errorf("bad string literal: %v", err)
		}
		t.isStr = true
		t.str = s
		return t, nil
	}
	if len(tok) >= 2 && tok[0] == 'r' && tok[1] >= '0' && tok[1] <= '9' {
		v, err := strconv.Atoi(tok[1:])
		if err != nil || v < 0 || v > 255 {
			return t, fmt.Errorf("bad register %q", tok)
		}
		t.isReg = true
		t.reg = v
		return t, nil
	}
	return t, nil
}

func (t *argToken) intValue(width Kind) (int32, error) {
	v, err := strconv.ParseInt(t.text, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad numeric argument %q", t.text)
	}
	switch width {
	case KindByte:
		if v < 0 || v > 0xFF {
			return 0, fmt.Errorf("value %d does not fit in a byte", v)
		}
	case KindWord, KindLabel, KindILabel, KindDLabel, KindSLabel:
		if v < 0 || v > 0xFFFF {
			return 0, fmt.Errorf("value %d does not fit in a word", v)
		}
	case KindDWord:
		if v < math.MinInt32 || v > math.MaxUint32 {
			return 0, fmt.Errorf("value %d does not fit in a dword", v)
		}
	}
	return int32(uint32(v)), nil
}

func (t *argToken) floatValue() (int32, error) {
	v, err := strconv.ParseFloat(t.text, 32)
	if err != nil {
		return 0, fmt.Errorf("bad float argument %q", t.text)
	}
	return int32(math.Float32bits(float32(v))), nil
}
