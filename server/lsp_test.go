package server

import (
	"strings"
	"testing"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/ember/compiler"
)

// notifications captures publishDiagnostics notifications.
func notifications(t *testing.T) (*glsp.Context, <-chan protocol.PublishDiagnosticsParams) {
	t.Helper()
	ch := make(chan protocol.PublishDiagnosticsParams, 4)
	ctx := &glsp.Context{
		Notify: func(method string, params any) {
			if method == protocol.ServerTextDocumentPublishDiagnostics {
				ch <- params.(protocol.PublishDiagnosticsParams)
			}
		},
	}
	return ctx, ch
}

func receive(t *testing.T, ch <-chan protocol.PublishDiagnosticsParams) protocol.PublishDiagnosticsParams {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no diagnostics published")
		return protocol.PublishDiagnosticsParams{}
	}
}

func newTestLSP(t *testing.T) *LspServer {
	t.Helper()
	s := NewLSP()
	t.Cleanup(s.worker.Stop)
	return s
}

func openDocument(t *testing.T, s *LspServer, ctx *glsp.Context, uri, text string) {
	t.Helper()
	err := s.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: protocol.DocumentUri(uri), LanguageID: "ember", Text: text},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestLSPDiagnosticsOnOpen(t *testing.T) {
	s := newTestLSP(t)
	ctx, ch := notifications(t)

	openDocument(t, s, ctx, "file:///a.ember", "1 +\n  )")
	p := receive(t, ch)
	if p.URI != "file:///a.ember" {
		t.Errorf("URI = %q", p.URI)
	}
	if len(p.Diagnostics) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(p.Diagnostics))
	}
	d := p.Diagnostics[0]
	if d.Message != "Expect expression." {
		t.Errorf("message = %q", d.Message)
	}
	want := protocol.Range{
		Start: protocol.Position{Line: 1, Character: 2},
		End:   protocol.Position{Line: 1, Character: 3},
	}
	if d.Range != want {
		t.Errorf("range = %+v, want %+v", d.Range, want)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("severity should be error")
	}
}

func TestLSPDiagnosticsClearedOnFix(t *testing.T) {
	s := newTestLSP(t)
	ctx, ch := notifications(t)

	openDocument(t, s, ctx, "file:///b.ember", "(1")
	if p := receive(t, ch); len(p.Diagnostics) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(p.Diagnostics))
	}

	err := s.textDocumentDidChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: "file:///b.ember"},
			Version:                2,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: "(1)"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p := receive(t, ch); len(p.Diagnostics) != 0 {
		t.Errorf("got %d diagnostics after fix, want 0", len(p.Diagnostics))
	}

	err = s.textDocumentDidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///b.ember"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p := receive(t, ch); len(p.Diagnostics) != 0 {
		t.Errorf("close published %d diagnostics, want 0", len(p.Diagnostics))
	}
	if _, ok := s.docs["file:///b.ember"]; ok {
		t.Error("closed document still tracked")
	}
}

func TestLSPHover(t *testing.T) {
	s := newTestLSP(t)
	ctx, ch := notifications(t)

	openDocument(t, s, ctx, "file:///c.ember", "(2 + 3) * 4")
	receive(t, ch)

	hover, err := s.textDocumentHover(ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///c.ember"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if hover == nil {
		t.Fatal("hover = nil")
	}
	content := hover.Contents.(protocol.MarkupContent)
	if !strings.HasPrefix(content.Value, "**= 20**") {
		t.Errorf("hover = %q, want value 20", content.Value)
	}
	if !strings.Contains(content.Value, "MULTIPLY") {
		t.Errorf("hover missing listing: %q", content.Value)
	}

	// Unknown documents and broken ones get no hover.
	for _, uri := range []string{"file:///missing.ember", "file:///bad.ember"} {
		if uri == "file:///bad.ember" {
			openDocument(t, s, ctx, uri, "1 +")
			receive(t, ch)
		}
		hover, err := s.textDocumentHover(ctx, &protocol.HoverParams{
			TextDocumentPositionParams: protocol.TextDocumentPositionParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentUri(uri)},
			},
		})
		if err != nil || hover != nil {
			t.Errorf("hover(%s) = %v, %v; want nil", uri, hover, err)
		}
	}
}

func TestToProtocolDiagnostic(t *testing.T) {
	tests := []struct {
		text  string
		diag  compiler.Diagnostic
		start protocol.Position
		end   protocol.Position
	}{
		{
			")",
			compiler.Diagnostic{Kind: compiler.KindSyntax, Line: 1, Column: 1, Length: 1, Lexeme: ")"},
			protocol.Position{Line: 0, Character: 0},
			protocol.Position{Line: 0, Character: 1},
		},
		{
			"1 +\n\n    ",
			compiler.Diagnostic{Kind: compiler.KindSyntax, Line: 3, Column: 5, AtEnd: true},
			protocol.Position{Line: 2, Character: 4},
			protocol.Position{Line: 2, Character: 4},
		},
		{
			"1\n+ \"ab",
			compiler.Diagnostic{Kind: compiler.KindLexical, Line: 2, Column: 3, Length: 3},
			protocol.Position{Line: 1, Character: 2},
			protocol.Position{Line: 1, Character: 5},
		},
		{
			"",
			compiler.Diagnostic{Kind: compiler.KindSyntax},
			protocol.Position{Line: 0, Character: 0},
			protocol.Position{Line: 0, Character: 0},
		},
		{
			// U+1F600 takes two UTF-16 code units.
			"\"\U0001F600\" @",
			compiler.Diagnostic{Kind: compiler.KindLexical, Line: 1, Column: 5, Length: 1},
			protocol.Position{Line: 0, Character: 5},
			protocol.Position{Line: 0, Character: 6},
		},
		{
			"1 +\n\"\U0001F600\U0001F600\" )",
			compiler.Diagnostic{Kind: compiler.KindSyntax, Line: 2, Column: 6, Length: 1, Lexeme: ")"},
			protocol.Position{Line: 1, Character: 7},
			protocol.Position{Line: 1, Character: 8},
		},
		{
			"\"\U0001F600",
			compiler.Diagnostic{Kind: compiler.KindLexical, Line: 1, Column: 1, Length: 2},
			protocol.Position{Line: 0, Character: 0},
			protocol.Position{Line: 0, Character: 3},
		},
	}
	for _, tc := range tests {
		d := tc.diag
		got := toProtocolDiagnostic(tc.text, &d)
		if got.Range.Start != tc.start || got.Range.End != tc.end {
			t.Errorf("range for %q %+v = %+v, want %+v-%+v", tc.text, tc.diag, got.Range, tc.start, tc.end)
		}
		if got.Code == nil || got.Code.Value != tc.diag.Kind.String() {
			t.Errorf("code = %v, want %s", got.Code, tc.diag.Kind)
		}
	}
}

func TestLSPInitialize(t *testing.T) {
	s := newTestLSP(t)
	result, err := s.initialize(&glsp.Context{}, &protocol.InitializeParams{})
	if err != nil {
		t.Fatal(err)
	}
	init := result.(protocol.InitializeResult)
	if init.ServerInfo == nil || init.ServerInfo.Name != lspName {
		t.Errorf("server info = %+v", init.ServerInfo)
	}
	if init.Capabilities.HoverProvider != true {
		t.Error("hover not advertised")
	}
}
