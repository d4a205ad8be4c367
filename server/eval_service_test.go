package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

func bg() context.Context {
	return context.Background()
}

func sourceRequest(t *testing.T, source string) *connect.Request[structpb.Struct] {
	t.Helper()
	msg, err := structpb.NewStruct(map[string]interface{}{"source": source})
	if err != nil {
		t.Fatal(err)
	}
	return connect.NewRequest(msg)
}

func newTestEvalService(t *testing.T) *EvalService {
	t.Helper()
	w := NewWorker()
	t.Cleanup(w.Stop)
	return NewEvalService(w)
}

// ---------------------------------------------------------------------------
// Evaluate
// ---------------------------------------------------------------------------

func TestEvaluate(t *testing.T) {
	svc := newTestEvalService(t)

	tests := []struct {
		source  string
		display string
		value   float64
	}{
		{"1.2", "1.2", 1.2},
		{"2 + 3 * 4", "14", 14},
		{"(2 + 3) * 4", "20", 20},
		{"-2 * 3", "-6", -6},
	}
	for _, tc := range tests {
		resp, err := svc.Evaluate(bg(), sourceRequest(t, tc.source))
		if err != nil {
			t.Fatalf("Evaluate(%q) returned error: %v", tc.source, err)
		}
		fields := resp.Msg.GetFields()
		if !fields["success"].GetBoolValue() {
			t.Errorf("Evaluate(%q) was not successful: %v", tc.source, resp.Msg)
			continue
		}
		if got := fields["display"].GetStringValue(); got != tc.display {
			t.Errorf("Evaluate(%q) display = %q, want %q", tc.source, got, tc.display)
		}
		if got := fields["value"].GetNumberValue(); got != tc.value {
			t.Errorf("Evaluate(%q) value = %v, want %v", tc.source, got, tc.value)
		}
		if got := fields["status"].GetStringValue(); got != "ok" {
			t.Errorf("Evaluate(%q) status = %q, want ok", tc.source, got)
		}
	}
}

func TestEvaluate_NonFinite(t *testing.T) {
	svc := newTestEvalService(t)

	resp, err := svc.Evaluate(bg(), sourceRequest(t, "1 / 0"))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	fields := resp.Msg.GetFields()
	if fields["display"].GetStringValue() != "Infinity" {
		t.Errorf("display = %q, want Infinity", fields["display"].GetStringValue())
	}
	if _, ok := fields["value"]; ok {
		t.Error("non-finite result should omit value")
	}
}

func TestEvaluate_CompileError(t *testing.T) {
	svc := newTestEvalService(t)

	resp, err := svc.Evaluate(bg(), sourceRequest(t, "(1 + 2"))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	fields := resp.Msg.GetFields()
	if fields["success"].GetBoolValue() {
		t.Fatal("Evaluate should fail for unbalanced parens")
	}
	if got := fields["status"].GetStringValue(); got != "compile error" {
		t.Errorf("status = %q, want compile error", got)
	}
	diags := fields["diagnostics"].GetListValue().GetValues()
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0].GetStructValue().GetFields()
	if d["message"].GetStringValue() != "Expect ')' after expression." {
		t.Errorf("message = %q", d["message"].GetStringValue())
	}
	if d["line"].GetNumberValue() != 1 {
		t.Errorf("line = %v, want 1", d["line"].GetNumberValue())
	}
	if d["kind"].GetStringValue() != "syntax" {
		t.Errorf("kind = %q, want syntax", d["kind"].GetStringValue())
	}
}

func TestEvaluate_EmptySource(t *testing.T) {
	svc := newTestEvalService(t)

	for _, source := range []string{"", "   "} {
		_, err := svc.Evaluate(bg(), sourceRequest(t, source))
		if connect.CodeOf(err) != connect.CodeInvalidArgument {
			t.Errorf("Evaluate(%q) code = %v, want InvalidArgument", source, connect.CodeOf(err))
		}
	}
}

func TestEvaluate_WorkerStopped(t *testing.T) {
	w := NewWorker()
	w.Stop()
	svc := NewEvalService(w)

	_, err := svc.Evaluate(bg(), sourceRequest(t, "1"))
	if connect.CodeOf(err) != connect.CodeInternal {
		t.Errorf("code = %v, want Internal", connect.CodeOf(err))
	}
	if !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("err = %v, want ErrWorkerStopped", err)
	}
}

// ---------------------------------------------------------------------------
// Disassemble
// ---------------------------------------------------------------------------

func TestDisassemble(t *testing.T) {
	svc := newTestEvalService(t)

	resp, err := svc.Disassemble(bg(), sourceRequest(t, "-1.2"))
	if err != nil {
		t.Fatalf("Disassemble returned error: %v", err)
	}
	fields := resp.Msg.GetFields()
	if !fields["success"].GetBoolValue() {
		t.Fatalf("Disassemble was not successful: %v", resp.Msg)
	}
	listing := fields["listing"].GetStringValue()
	for _, want := range []string{"== code ==", "CONSTANT     0 '1.2'", "NEGATE", "RETURN"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}

func TestDisassemble_CompileError(t *testing.T) {
	svc := newTestEvalService(t)

	resp, err := svc.Disassemble(bg(), sourceRequest(t, "1 +"))
	if err != nil {
		t.Fatalf("Disassemble returned error: %v", err)
	}
	fields := resp.Msg.GetFields()
	if fields["success"].GetBoolValue() {
		t.Error("Disassemble should fail")
	}
	if _, ok := fields["listing"]; ok {
		t.Error("failed compile should not return a listing")
	}
	if n := len(fields["diagnostics"].GetListValue().GetValues()); n != 1 {
		t.Errorf("got %d diagnostics, want 1", n)
	}
}

// ---------------------------------------------------------------------------
// Over HTTP
// ---------------------------------------------------------------------------

func TestServerOverHTTP(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Shutdown(bg())

	for _, opts := range [][]connect.ClientOption{
		nil,
		{connect.WithProtoJSON()},
		{connect.WithGRPCWeb()},
	} {
		client := connect.NewClient[structpb.Struct, structpb.Struct](
			http.DefaultClient, ts.URL+EvaluateProcedure, opts...)

		resp, err := client.CallUnary(bg(), sourceRequest(t, "(2 + 3) * 4"))
		if err != nil {
			t.Fatalf("CallUnary returned error: %v", err)
		}
		if got := resp.Msg.GetFields()["display"].GetStringValue(); got != "20" {
			t.Errorf("display = %q, want 20", got)
		}
	}

	client := connect.NewClient[structpb.Struct, structpb.Struct](
		http.DefaultClient, ts.URL+DisassembleProcedure)
	resp, err := client.CallUnary(bg(), sourceRequest(t, "1"))
	if err != nil {
		t.Fatalf("Disassemble over HTTP: %v", err)
	}
	if !strings.Contains(resp.Msg.GetFields()["listing"].GetStringValue(), "RETURN") {
		t.Errorf("listing = %q", resp.Msg.GetFields()["listing"].GetStringValue())
	}

	bad := connect.NewClient[structpb.Struct, structpb.Struct](
		http.DefaultClient, ts.URL+EvaluateProcedure)
	_, err = bad.CallUnary(bg(), sourceRequest(t, ""))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("empty source code = %v, want InvalidArgument", connect.CodeOf(err))
	}
}

func TestServerRejectsOversizedRequest(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Shutdown(bg())

	client := connect.NewClient[structpb.Struct, structpb.Struct](
		http.DefaultClient, ts.URL+EvaluateProcedure)
	_, err := client.CallUnary(bg(), sourceRequest(t, strings.Repeat("-", DefaultReadMaxBytes)+"1"))
	if connect.CodeOf(err) != connect.CodeResourceExhausted {
		t.Errorf("oversized request code = %v, want ResourceExhausted", connect.CodeOf(err))
	}
}

func TestEvaluate_DeepNesting(t *testing.T) {
	svc := newTestEvalService(t)
	resp, err := svc.Evaluate(bg(), sourceRequest(t, strings.Repeat("(", 100_000)+"1"))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if resp.Msg.GetFields()["success"].GetBoolValue() {
		t.Error("success = true, want false")
	}
	diags := resp.Msg.GetFields()["diagnostics"].GetListValue().GetValues()
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if got := diags[0].GetStructValue().GetFields()["kind"].GetStringValue(); got != "capacity" {
		t.Errorf("kind = %q, want capacity", got)
	}
}
