// Package server implements the quest script language server. It feeds
// assembler diagnostics back to the editor as the script is typed and
// answers completion, hover, definition and reference requests from the
// opcode table and the label structure of the open documents.
package server

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/seliria/questfile/pkg/bytecode"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "questfile-lsp"

// LspServer bridges LSP editor features to the assembler via an
// AnalysisWorker.
type LspServer struct {
	worker *AnalysisWorker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		worker:  NewAnalysisWorker(),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "quest script LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	s.worker.Do(func(a *Analyzer) any {
		a.Forget(string(uri))
		return nil
	})

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, pos)
	if prefix == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(a *Analyzer) any {
		return s.complete(a, string(uri), prefix)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	word := extractWord(text, pos)
	if word == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(a *Analyzer) any {
		return s.hover(a, string(uri), word)
	})
	if err != nil {
		return nil, nil
	}
	if result == nil {
		return nil, nil
	}

	return result.(*protocol.Hover), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	label, ok := wordLabel(extractWord(text, pos))
	if !ok {
		return nil, nil
	}

	defs, _ := bytecode.ScanLabels(text)
	var locations []protocol.Location
	for _, d := range defs {
		if d.Label == label {
			locations = append(locations, pointLocation(uri, d.Line))
		}
	}
	if locations == nil {
		return nil, nil
	}
	return locations, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	label, ok := wordLabel(extractWord(text, pos))
	if !ok {
		return nil, nil
	}

	defs, refs := bytecode.ScanLabels(text)
	var locations []protocol.Location
	if params.Context.IncludeDeclaration {
		for _, d := range defs {
			if d.Label == label {
				locations = append(locations, pointLocation(uri, d.Line))
			}
		}
	}
	for _, r := range refs {
		if r.Label == label {
			locations = append(locations, pointLocation(uri, r.Line))
		}
	}
	return locations, nil
}

// --- Analyzer-backed logic (called on worker goroutine) ---

func (s *LspServer) complete(a *Analyzer, uri, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)

	// Mnemonics
	for _, op := range bytecode.Opcodes() {
		if strings.HasPrefix(op.Mnemonic, lowerPrefix) {
			kind := protocol.CompletionItemKindFunction
			detail := op.Signature()
			mnemonic := op.Mnemonic
			items = append(items, protocol.CompletionItem{
				Label:      mnemonic,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &mnemonic,
			})
		}
	}

	// Directives
	for _, directive := range []string{".data", ".string"} {
		if strings.HasPrefix(directive, lowerPrefix) {
			kind := protocol.CompletionItemKindKeyword
			detail := "directive"
			name := directive
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &name,
			})
		}
	}

	// Labels defined in this document complete after numeric prefixes
	if result := a.Result(uri); result != nil && isDigits(prefix) {
		for _, seg := range result.Segments {
			for _, label := range seg.Labels {
				name := strconv.Itoa(label)
				if !strings.HasPrefix(name, prefix) {
					continue
				}
				kind := protocol.CompletionItemKindConstant
				detail := fmt.Sprintf("label (%s segment)", seg.Type)
				items = append(items, protocol.CompletionItem{
					Label:      name,
					Kind:       &kind,
					Detail:     &detail,
					InsertText: &name,
				})
			}
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func (s *LspServer) hover(a *Analyzer, uri, word string) *protocol.Hover {
	if op, ok := bytecode.OpcodeByMnemonic(word); ok {
		return opcodeHover(op)
	}

	// Numeric words hover as labels when the document defines them
	label, ok := wordLabel(word)
	if !ok {
		return nil
	}
	result := a.Result(uri)
	if result == nil {
		return nil
	}
	for i := range result.Segments {
		seg := &result.Segments[i]
		for _, l := range seg.Labels {
			if l == label {
				return labelHover(label, seg)
			}
		}
	}
	return nil
}

func opcodeHover(op *bytecode.Opcode) *protocol.Hover {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", op.Mnemonic)
	fmt.Fprintf(&b, "```\n%s\n```\n\n", op.Signature())
	if op.Code > 0xFF {
		fmt.Fprintf(&b, "Opcode `%02X %02X`", byte(op.Code>>8), byte(op.Code))
	} else {
		fmt.Fprintf(&b, "Opcode `%02X`", byte(op.Code))
	}
	if op.Stack == bytecode.StackPush {
		b.WriteString(". Arguments travel through the argument stack, one arg_push per value.")
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func labelHover(label int, seg *bytecode.Segment) *protocol.Hover {
	var detail string
	switch seg.Type {
	case bytecode.SegmentInstructions:
		detail = fmt.Sprintf("%d instructions", len(seg.Instructions))
	case bytecode.SegmentData:
		detail = fmt.Sprintf("%d bytes", len(seg.Data))
	case bytecode.SegmentString:
		detail = strconv.Quote(seg.Str)
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: fmt.Sprintf("**label %d**\n\n%s segment, %s", label, seg.Type, detail),
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func(a *Analyzer) any {
		return diagnosticsFor(a.Update(string(uri), text))
	})
	if err != nil {
		return
	}

	diagnostics, _ := result.([]protocol.Diagnostic)
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnosticsFor converts an assembly result into LSP diagnostics.
// Assembly errors carry 1-based lines; warnings have no position and
// land on the first line.
func diagnosticsFor(result *bytecode.AssemblyResult) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic
	source := lspName

	for _, e := range result.Errors {
		line := uint32(0)
		if e.Line > 0 {
			line = uint32(e.Line - 1)
		}
		severity := protocol.DiagnosticSeverityError
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    lineSpan(line),
			Severity: &severity,
			Source:   &source,
			Message:  e.Msg,
		})
	}
	for _, w := range result.Warnings {
		severity := protocol.DiagnosticSeverityWarning
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    lineSpan(0),
			Severity: &severity,
			Source:   &source,
			Message:  w,
		})
	}

	return diagnostics
}

// lineSpan covers a whole 0-based line.
func lineSpan(line uint32) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: 0},
		End:   protocol.Position{Line: line + 1, Character: 0},
	}
}

// pointLocation marks the start of a 0-based line.
func pointLocation(uri protocol.DocumentUri, line int) protocol.Location {
	pos := protocol.Position{Line: uint32(line), Character: 0}
	return protocol.Location{
		URI:   uri,
		Range: protocol.Range{Start: pos, End: pos},
	}
}

// --- Text extraction helpers ---

// isWordChar reports whether a rune can appear in a mnemonic, directive
// or label. The comparison jumps put '=', '<', '>' and '!' in mnemonic
// names, and directives start with '.'.
func isWordChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) ||
		ch == '_' || ch == '=' || ch == '<' || ch == '>' || ch == '!' || ch == '.'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the word
	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full word under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}

	end := col
	for end < len(line) && isWordChar(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

// wordLabel interprets a word as a label id.
func wordLabel(word string) (int, bool) {
	if word == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(word, 0, 32)
	if err != nil || v < 0 || v > 0xFFFF {
		return 0, false
	}
	return int(v), true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func boolPtr(b bool) *bool {
	return &b
}
