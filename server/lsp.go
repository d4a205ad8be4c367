package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/ember/compiler"
	"github.com/chazu/ember/pkg/pipeline"
	"github.com/chazu/ember/vm"
)

const lspName = "ember-lsp"

// LspServer publishes compile diagnostics for open documents and shows the
// value of a document on hover. Each document is one expression.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server with its own evaluation worker.
func NewLSP() *LspServer {
	s := &LspServer{
		worker:  NewWorker(),
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

		TextDocumentHover: s.textDocumentHover,
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
	log.Info("ember LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.HoverProvider = true

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
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	result, err := s.worker.Do(context.Background(), func() interface{} {
		return s.hover(text)
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result.(*protocol.Hover), nil
}

// hover evaluates the whole document. Documents that do not compile get no
// hover; their diagnostics already explain why.
func (s *LspServer) hover(text string) *protocol.Hover {
	res := pipeline.Interpret(text, pipeline.Options{})
	if res.Status == vm.InterpretCompileError || res.Chunk == nil {
		return nil
	}

	var b strings.Builder
	if res.OK() {
		fmt.Fprintf(&b, "**= %s**\n\n", res.Display())
	} else {
		fmt.Fprintf(&b, "**runtime error:** %s\n\n", res.Fault.Message)
	}
	b.WriteString("```\n")
	b.WriteString(res.Chunk.Disassemble())
	b.WriteString("```")

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(context.Background(), func() interface{} {
		_, compileErr := compiler.Compile(text)
		return compiler.Diagnostics(compileErr)
	})
	if err != nil {
		return
	}

	diagnostics := []protocol.Diagnostic{}
	for _, d := range result.([]*compiler.Diagnostic) {
		diagnostics = append(diagnostics, toProtocolDiagnostic(text, d))
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// toProtocolDiagnostic converts 1-based line and rune-column positions to
// the 0-based UTF-16 positions LSP uses. The range covers the offending
// token on its first line.
func toProtocolDiagnostic(text string, d *compiler.Diagnostic) protocol.Diagnostic {
	lineText := sourceLine(text, d.Line)
	col := max(d.Column-1, 0)
	line := protocol.UInteger(max(d.Line-1, 0))
	start := utf16Column(lineText, col)
	end := utf16Column(lineText, col+max(d.Length, 0))

	severity := protocol.DiagnosticSeverityError
	source := lspName
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: start},
			End:   protocol.Position{Line: line, Character: end},
		},
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: d.Kind.String()},
		Source:   &source,
		Message:  d.Message,
	}
}

// sourceLine returns the 1-based line n of text, or "" when out of range.
func sourceLine(text string, n int) string {
	for i := 1; i < n; i++ {
		nl := strings.IndexByte(text, '\n')
		if nl < 0 {
			return ""
		}
		text = text[nl+1:]
	}
	if n < 1 {
		return ""
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[:nl]
	}
	return text
}

// utf16Column converts a 0-based rune column on line to UTF-16 code units.
// Columns past the end of the line count one unit per rune.
func utf16Column(line string, col int) protocol.UInteger {
	units := 0
	for _, r := range line {
		if col == 0 {
			break
		}
		units += utf16.RuneLen(r)
		col--
	}
	return protocol.UInteger(units + col)
}

func boolPtr(b bool) *bool {
	return &b
}
