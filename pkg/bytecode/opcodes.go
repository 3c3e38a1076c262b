// Package bytecode implements the quest script instruction set: the
// opcode table, the binary object code codec, and a symmetric
// assembler/disassembler pair for the textual form.
package bytecode

import "fmt"

// Kind classifies a single instruction parameter.
type Kind uint8

const (
	// KindByte is an unsigned 8-bit immediate.
	KindByte Kind = iota
	// KindWord is an unsigned 16-bit immediate.
	KindWord
	// KindDWord is a 32-bit immediate.
	KindDWord
	// KindFloat is a 32-bit IEEE 754 immediate. Arg values hold the raw bits.
	KindFloat
	// KindLabel is a label reference of unknown segment type.
	KindLabel
	// KindILabel is a label reference to an instruction segment.
	KindILabel
	// KindDLabel is a label reference to a data segment.
	KindDLabel
	// KindSLabel is a label reference to a string segment.
	KindSLabel
	// KindString is an inline zero-terminated UTF-16LE string.
	KindString
	// KindReg is a register whose value is read or written.
	KindReg
	// KindRegRef is a register passed by reference.
	KindRegRef
	// KindILabelVar is a count-prefixed list of instruction labels.
	KindILabelVar
	// KindRegVar is a count-prefixed list of registers.
	KindRegVar
)

// Size returns the inline encoded width of the kind in bytes, or -1 when
// the width depends on the value.
func (k Kind) Size() int {
	switch k {
	case KindByte, KindReg, KindRegRef:
		return 1
	case KindWord, KindLabel, KindILabel, KindDLabel, KindSLabel:
		return 2
	case KindDWord, KindFloat:
		return 4
	case KindString, KindILabelVar, KindRegVar:
		return -1
	}
	return -1
}

// IsLabel reports whether the kind names another segment.
func (k Kind) IsLabel() bool {
	switch k {
	case KindLabel, KindILabel, KindDLabel, KindSLabel:
		return true
	}
	return false
}

// StackKind describes how an opcode receives its arguments.
type StackKind uint8

const (
	// StackNone means arguments are encoded inline after the opcode.
	StackNone StackKind = iota
	// StackPush means arguments are pushed with arg_push* instructions
	// and nothing is encoded inline.
	StackPush
)

// Opcode describes one instruction of the quest script machine.
type Opcode struct {
	Code     uint16
	Mnemonic string
	Params   []Kind
	Stack    StackKind
}

// CodeSize returns the encoded width of the opcode itself: one byte for
// core opcodes, two for the 0xF8/0xF9 pages.
func (o *Opcode) CodeSize() int {
	if o.Code > 0xFF {
		return 2
	}
	return 1
}

// String returns the mnemonic.
func (o *Opcode) String() string { return o.Mnemonic }

// Signature renders a human readable signature for completion and hover.
func (o *Opcode) Signature() string {
	s := o.Mnemonic
	for i, p := range o.Params {
		if i == 0 {
			s += " "
		} else {
			s += ", "
		}
		s += kindNames[p]
	}
	if o.Stack == StackPush {
		s += "  (stack arguments)"
	}
	return s
}

var kindNames = map[Kind]string{
	KindByte:      "byte",
	KindWord:      "word",
	KindDWord:     "dword",
	KindFloat:     "float",
	KindLabel:     "label",
	KindILabel:    "ilabel",
	KindDLabel:    "dlabel",
	KindSLabel:    "slabel",
	KindString:    "string",
	KindReg:       "reg",
	KindRegRef:    "regref",
	KindILabelVar: "ilabel...",
	KindRegVar:    "reg...",
}

// Opcode byte values referenced directly by the assembler and
// disassembler when expanding and folding stack argument runs.
const (
	CodeRet      = 0x01
	CodeArgPushR = 0x48
	CodeArgPushL = 0x49
	CodeArgPushB = 0x4A
	CodeArgPushW = 0x4B
	CodeArgPushA = 0x4C
	CodeArgPushO = 0x4D
	CodeArgPushS = 0x4E
)

// opcodes is the instruction table. Codes 0xF8xx and 0xF9xx are the
// two-byte extended pages introduced for the later game revisions.
var opcodes = []Opcode{
	{0x00, "nop", nil, StackNone},
	{0x01, "ret", nil, StackNone},
	{0x02, "sync", nil, StackNone},
	{0x03, "exit", []Kind{KindDWord}, StackPush},
	{0x04, "thread", []Kind{KindILabel}, StackNone},
	{0x05, "va_start", nil, StackNone},
	{0x06, "va_end", nil, StackNone},
	{0x07, "va_call", []Kind{KindILabel}, StackNone},
	{0x08, "let", []Kind{KindReg, KindReg}, StackNone},
	{0x09, "leti", []Kind{KindReg, KindDWord}, StackNone},
	{0x0A, "letb", []Kind{KindReg, KindByte}, StackNone},
	{0x0B, "letw", []Kind{KindReg, KindWord}, StackNone},
	{0x0C, "leta", []Kind{KindReg, KindRegRef}, StackNone},
	{0x0D, "leto", []Kind{KindReg, KindLabel}, StackNone},
	{0x10, "set", []Kind{KindReg}, StackNone},
	{0x11, "clear", []Kind{KindReg}, StackNone},
	{0x12, "rev", []Kind{KindReg}, StackNone},
	{0x13, "gset", []Kind{KindWord}, StackNone},
	{0x14, "gclear", []Kind{KindWord}, StackNone},
	{0x15, "grev", []Kind{KindWord}, StackNone},
	{0x16, "glet", []Kind{KindWord}, StackNone},
	{0x17, "gget", []Kind{KindWord, KindReg}, StackNone},
	{0x18, "add", []Kind{KindReg, KindReg}, StackNone},
	{0x19, "addi", []Kind{KindReg, KindDWord}, StackNone},
	{0x1A, "sub", []Kind{KindReg, KindReg}, StackNone},
	{0x1B, "subi", []Kind{KindReg, KindDWord}, StackNone},
	{0x1C, "mul", []Kind{KindReg, KindReg}, StackNone},
	{0x1D, "muli", []Kind{KindReg, KindDWord}, StackNone},
	{0x1E, "div", []Kind{KindReg, KindReg}, StackNone},
	{0x1F, "divi", []Kind{KindReg, KindDWord}, StackNone},
	{0x20, "and", []Kind{KindReg, KindReg}, StackNone},
	{0x21, "andi", []Kind{KindReg, KindDWord}, StackNone},
	{0x22, "or", []Kind{KindReg, KindReg}, StackNone},
	{0x23, "ori", []Kind{KindReg, KindDWord}, StackNone},
	{0x24, "xor", []Kind{KindReg, KindReg}, StackNone},
	{0x25, "xori", []Kind{KindReg, KindDWord}, StackNone},
	{0x26, "mod", []Kind{KindReg, KindReg}, StackNone},
	{0x27, "modi", []Kind{KindReg, KindDWord}, StackNone},
	{0x28, "jmp", []Kind{KindILabel}, StackNone},
	{0x29, "call", []Kind{KindILabel}, StackNone},
	{0x2A, "jmp_on", []Kind{KindILabel, KindRegVar}, StackNone},
	{0x2B, "jmp_off", []Kind{KindILabel, KindRegVar}, StackNone},
	{0x2C, "jmp_=", []Kind{KindReg, KindReg, KindILabel}, StackNone},
	{0x2D, "jmpi_=", []Kind{KindReg, KindDWord, KindILabel}, StackNone},
	{0x2E, "jmp_!=", []Kind{KindReg, KindReg, KindILabel}, StackNone},
	{0x2F, "jmpi_!=", []Kind{KindReg, KindDWord, KindILabel}, StackNone},
	{0x30, "ujmp_>", []Kind{KindReg, KindReg, KindILabel}, StackNone},
	{0x31, "ujmpi_>", []Kind{KindReg, KindDWord, KindILabel}, StackNone},
	{0x32, "jmp_>", []Kind{KindReg, KindReg, KindILabel}, StackNone},
	{0x33, "jmpi_>", []Kind{KindReg, KindDWord, KindILabel}, StackNone},
	{0x34, "ujmp_<", []Kind{KindReg, KindReg, KindILabel}, StackNone},
	{0x35, "ujmpi_<", []Kind{KindReg, KindDWord, KindILabel}, StackNone},
	{0x36, "jmp_<", []Kind{KindReg, KindReg, KindILabel}, StackNone},
	{0x37, "jmpi_<", []Kind{KindReg, KindDWord, KindILabel}, StackNone},
	{0x38, "ujmp_>=", []Kind{KindReg, KindReg, KindILabel}, StackNone},
	{0x39, "ujmpi_>=", []Kind{KindReg, KindDWord, KindILabel}, StackNone},
	{0x3A, "jmp_>=", []Kind{KindReg, KindReg, KindILabel}, StackNone},
	{0x3B, "jmpi_>=", []Kind{KindReg, KindDWord, KindILabel}, StackNone},
	{0x3C, "ujmp_<=", []Kind{KindReg, KindReg, KindILabel}, StackNone},
	{0x3D, "ujmpi_<=", []Kind{KindReg, KindDWord, KindILabel}, StackNone},
	{0x3E, "jmp_<=", []Kind{KindReg, KindReg, KindILabel}, StackNone},
	{0x3F, "jmpi_<=", []Kind{KindReg, KindDWord, KindILabel}, StackNone},
	{0x40, "switch_jmp", []Kind{KindReg, KindILabelVar}, StackNone},
	{0x41, "switch_call", []Kind{KindReg, KindILabelVar}, StackNone},
	{0x42, "stack_push", []Kind{KindReg}, StackNone},
	{0x43, "stack_pop", []Kind{KindReg}, StackNone},
	{0x44, "stack_pushm", []Kind{KindReg, KindDWord}, StackNone},
	{0x45, "stack_popm", []Kind{KindReg, KindDWord}, StackNone},
	{0x48, "arg_pushr", []Kind{KindReg}, StackNone},
	{0x49, "arg_pushl", []Kind{KindDWord}, StackNone},
	{0x4A, "arg_pushb", []Kind{KindByte}, StackNone},
	{0x4B, "arg_pushw", []Kind{KindWord}, StackNone},
	{0x4C, "arg_pusha", []Kind{KindRegRef}, StackNone},
	{0x4D, "arg_pusho", []Kind{KindLabel}, StackNone},
	{0x4E, "arg_pushs", []Kind{KindString}, StackNone},
	{0x50, "message", []Kind{KindDWord, KindString}, StackPush},
	{0x51, "list", []Kind{KindRegRef, KindString}, StackPush},
	{0x52, "fadd", []Kind{KindReg, KindReg}, StackNone},
	{0x53, "faddi", []Kind{KindReg, KindFloat}, StackNone},
	{0x54, "fsub", []Kind{KindReg, KindReg}, StackNone},
	{0x55, "fsubi", []Kind{KindReg, KindFloat}, StackNone},
	{0x56, "fmul", []Kind{KindReg, KindReg}, StackNone},
	{0x57, "fmuli", []Kind{KindReg, KindFloat}, StackNone},
	{0x58, "fdiv", []Kind{KindReg, KindReg}, StackNone},
	{0x59, "fdivi", []Kind{KindReg, KindFloat}, StackNone},
	{0x5C, "window_msg", []Kind{KindString}, StackPush},
	{0x5D, "add_msg", []Kind{KindString}, StackPush},
	{0x5E, "mesend", nil, StackNone},
	{0x5F, "gettime", []Kind{KindReg}, StackNone},
	{0x60, "winend", nil, StackNone},
	{0x61, "npc_crt", []Kind{KindByte, KindByte}, StackPush},
	{0x63, "npc_stop", []Kind{KindRegRef}, StackPush},
	{0x64, "npc_play", []Kind{KindDWord}, StackPush},
	{0x65, "npc_kill", []Kind{KindRegRef}, StackPush},
	{0x68, "pl_add_meseta", []Kind{KindDWord, KindDWord}, StackPush},
	{0x6C, "hud_hide", nil, StackNone},
	{0x6D, "hud_show", nil, StackNone},
	{0x81, "keyword", []Kind{KindRegRef, KindString}, StackPush},
	{0x95, "set_qt_failure", []Kind{KindILabel}, StackNone},
	{0x96, "set_qt_success", []Kind{KindILabel}, StackNone},
	{0xA1, "set_quest_board_handler", []Kind{KindDWord, KindILabel, KindString}, StackPush},
	{0xA2, "clear_quest_board_handler", []Kind{KindDWord}, StackPush},
	{0xB0, "switch_on", []Kind{KindDWord}, StackPush},
	{0xB1, "switch_off", []Kind{KindDWord}, StackPush},
	{0xB2, "playbgm_epi", []Kind{KindDWord}, StackPush},
	{0xB3, "set_mainwarp_all", nil, StackNone},

	{0xF801, "set_chat_callback", []Kind{KindRegRef, KindString}, StackPush},
	{0xF808, "get_difficulty_level2", []Kind{KindRegRef}, StackPush},
	{0xF809, "get_number_of_player1", []Kind{KindRegRef}, StackPush},
	{0xF80A, "get_coord_of_player", []Kind{KindRegRef, KindRegRef}, StackPush},
	{0xF810, "get_npc_data", []Kind{KindDLabel}, StackNone},
	{0xF81B, "get_slotnumber", []Kind{KindRegRef}, StackPush},
	{0xF824, "set_floor_handler", []Kind{KindDWord, KindILabel}, StackPush},
	{0xF825, "clear_floor_handler", []Kind{KindDWord}, StackPush},
	{0xF82F, "unlock_door", []Kind{KindDWord, KindDWord}, StackPush},
	{0xF830, "lock_door", []Kind{KindDWord, KindDWord}, StackPush},
	{0xF848, "set_mainwarp", []Kind{KindDWord}, StackPush},
	{0xF849, "load_pvr", nil, StackNone},
	{0xF84C, "get_slot_meseta", []Kind{KindRegRef}, StackPush},
	{0xF84D, "get_player_level", []Kind{KindRegRef, KindRegRef}, StackPush},
	{0xF851, "get_section_id", []Kind{KindRegRef, KindRegRef}, StackPush},
	{0xF85E, "set_obj_param", []Kind{KindRegRef, KindRegRef}, StackPush},
	{0xF888, "scroll_text", []Kind{KindDWord, KindDWord, KindDWord, KindDWord, KindDWord, KindFloat, KindRegRef, KindString}, StackPush},
	{0xF88F, "get_player_status", []Kind{KindRegRef, KindRegRef}, StackPush},
	{0xF8A8, "damage_heal", []Kind{KindDWord, KindDWord}, StackPush},
	{0xF8BC, "set_episode", []Kind{KindDWord}, StackNone},
	{0xF8E7, "bb_map_designate", []Kind{KindByte, KindWord, KindByte, KindByte}, StackNone},
	{0xF8EC, "bb_get_monster_count", []Kind{KindRegRef}, StackPush},

	{0xF901, "bb_set_ep4_boss_can_escape", []Kind{KindDWord}, StackPush},
	{0xF90A, "bb_get_char_class", []Kind{KindRegRef, KindRegRef}, StackPush},
	{0xF940, "bb_exchange_slt", []Kind{KindDWord, KindRegRef, KindILabel, KindILabel}, StackPush},
	{0xF952, "bb_get_number_in_pack", []Kind{KindRegRef}, StackPush},
}

var (
	opcodeByCode     map[uint16]*Opcode
	opcodeByMnemonic map[string]*Opcode
)

func init() {
	opcodeByCode = make(map[uint16]*Opcode, len(opcodes))
	opcodeByMnemonic = make(map[string]*Opcode, len(opcodes))
	for i := range opcodes {
		op := &opcodes[i]
		opcodeByCode[op.Code] = op
		opcodeByMnemonic[op.Mnemonic] = op
	}
}

// OpcodeByCode looks up an opcode by its numeric code.
func OpcodeByCode(code uint16) (*Opcode, bool) {
	op, ok := opcodeByCode[code]
	return op, ok
}

// OpcodeByMnemonic looks up an opcode by its textual mnemonic.
func OpcodeByMnemonic(mnemonic string) (*Opcode, bool) {
	op, ok := opcodeByMnemonic[mnemonic]
	return op, ok
}

// Opcodes returns the full instruction table in code order. The slice is
// shared; callers must not modify it.
func Opcodes() []Opcode { return opcodes }

// UnknownMnemonic renders a placeholder mnemonic for codes absent from
// the table.
func UnknownMnemonic(code uint16) string {
	if code > 0xFF {
		return fmt.Sprintf("unknown_%04x", code)
	}
	return fmt.Sprintf("unknown_%02x", code)
}
