package bytecode

import (
	"strconv"
	"strings"
)

// LabelLocation ties a label id to a 0-based source line.
type LabelLocation struct {
	Label int
	Line  int
}

// ScanLabels walks assembly source and reports where labels are defined
// and where they are referenced as arguments of label typed parameters.
// The scan is lexical and line by line, so source that does not assemble
// still scans; lines it cannot make sense of contribute nothing.
func ScanLabels(source string) (defs, refs []LabelLocation) {
	for i, raw := range strings.Split(source, "\n") {
		text := strings.TrimSpace(stripComment(raw))
		if text == "" {
			continue
		}
		if label, ok := parseLabelLine(text); ok {
			if label <= 0xFFFF {
				defs = append(defs, LabelLocation{Label: label, Line: i})
			}
			continue
		}
		if strings.HasPrefix(text, ".") {
			continue
		}
		refs = scanLineRefs(i, text, refs)
	}
	return defs, refs
}

// scanLineRefs collects the label references of one instruction line.
func scanLineRefs(line int, text string, refs []LabelLocation) []LabelLocation {
	mnemonic, rest, _ := strings.Cut(text, " ")
	op, ok := OpcodeByMnemonic(mnemonic)
	if !ok {
		return refs
	}
	var tokens []argToken
	if strings.TrimSpace(rest) != "" {
		for _, raw := range splitArgs(rest) {
			tok, err := classifyToken(raw)
			if err != nil {
				return refs
			}
			tokens = append(tokens, tok)
		}
	}
	tokIdx := 0
	for _, kind := range op.Params {
		if kind == KindILabelVar {
			for ; tokIdx < len(tokens); tokIdx++ {
				if v, ok := tokenLabel(&tokens[tokIdx]); ok {
					refs = append(refs, LabelLocation{Label: v, Line: line})
				}
			}
			break
		}
		if kind == KindRegVar || tokIdx >= len(tokens) {
			break
		}
		if kind.IsLabel() {
			if v, ok := tokenLabel(&tokens[tokIdx]); ok {
				refs = append(refs, LabelLocation{Label: v, Line: line})
			}
		}
		tokIdx++
	}
	return refs
}

// tokenLabel extracts a label id from a numeric token.
func tokenLabel(tok *argToken) (int, bool) {
	if tok.isReg || tok.isStr {
		return 0, false
	}
	v, err := strconv.ParseInt(tok.text, 0, 32)
	if err != nil || v < 0 || v > 0xFFFF {
		return 0, false
	}
	return int(v), true
}
