package bytecode

import "testing"

func TestOpcodeLookup(t *testing.T) {
	op, ok := OpcodeByCode(0xF8BC)
	if !ok {
		t.Fatal("OpcodeByCode(0xF8BC) not found")
	}
	if op.Mnemonic != "set_episode" {
		t.Errorf("mnemonic = %q, want set_episode", op.Mnemonic)
	}
	if op.CodeSize() != 2 {
		t.Errorf("CodeSize() = %d, want 2", op.CodeSize())
	}

	back, ok := OpcodeByMnemonic("set_episode")
	if !ok || back != op {
		t.Error("mnemonic lookup does not return the same opcode")
	}

	if _, ok := OpcodeByCode(0xFE); ok {
		t.Error("OpcodeByCode(0xFE) should not resolve")
	}
}

func TestOpcodeTableConsistency(t *testing.T) {
	seenCode := make(map[uint16]string)
	seenMnemonic := make(map[string]uint16)
	for _, op := range Opcodes() {
		if prev, ok := seenCode[op.Code]; ok {
			t.Errorf("code 0x%02X used by %s and %s", op.Code, prev, op.Mnemonic)
		}
		seenCode[op.Code] = op.Mnemonic
		if prev, ok := seenMnemonic[op.Mnemonic]; ok {
			t.Errorf("mnemonic %s used by 0x%02X and 0x%02X", op.Mnemonic, prev, op.Code)
		}
		seenMnemonic[op.Mnemonic] = op.Code
		if op.Code > 0xFF && op.Code>>8 != 0xF8 && op.Code>>8 != 0xF9 {
			t.Errorf("extended opcode 0x%04X is not on the F8 or F9 page", op.Code)
		}
		for i, p := range op.Params {
			if (p == KindILabelVar || p == KindRegVar) && i != len(op.Params)-1 {
				t.Errorf("%s: variadic parameter %d is not last", op.Mnemonic, i)
			}
		}
		if op.Stack == StackPush {
			for _, p := range op.Params {
				if p == KindILabelVar || p == KindRegVar {
					t.Errorf("%s: stack opcode with variadic parameter", op.Mnemonic)
				}
			}
		}
	}
}

func TestUnknownMnemonic(t *testing.T) {
	if got := UnknownMnemonic(0xFE); got != "unknown_fe" {
		t.Errorf("UnknownMnemonic(0xFE) = %q", got)
	}
	if got := UnknownMnemonic(0xF8FF); got != "unknown_f8ff" {
		t.Errorf("UnknownMnemonic(0xF8FF) = %q", got)
	}
}

func TestSignature(t *testing.T) {
	op, _ := OpcodeByMnemonic("set_floor_handler")
	got := op.Signature()
	if got != "set_floor_handler dword, ilabel  (stack arguments)" {
		t.Errorf("Signature() = %q", got)
	}
	ret, _ := OpcodeByMnemonic("ret")
	if ret.Signature() != "ret" {
		t.Errorf("Signature() = %q", ret.Signature())
	}
}

func TestKindSize(t *testing.T) {
	sizes := map[Kind]int{
		KindByte:   1,
		KindReg:    1,
		KindRegRef: 1,
		KindWord:   2,
		KindILabel: 2,
		KindDWord:  4,
		KindFloat:  4,
		KindString: -1,
	}
	for kind, want := range sizes {
		if got := kind.Size(); got != want {
			t.Errorf("%v.Size() = %d, want %d", kind, got, want)
		}
	}
}
