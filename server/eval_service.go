package server

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/ember/compiler"
	"github.com/chazu/ember/pkg/pipeline"
	"github.com/chazu/ember/vm"
)

// Procedure names of the evaluation service. Messages are
// google.protobuf.Struct on both sides, so any Connect, gRPC or gRPC-Web
// client can call them without generated stubs.
const (
	EvalServiceName      = "ember.v1.EvalService"
	EvaluateProcedure    = "/" + EvalServiceName + "/Evaluate"
	DisassembleProcedure = "/" + EvalServiceName + "/Disassemble"
)

// EvalService implements the evaluation Connect handlers.
type EvalService struct {
	worker *Worker
}

// NewEvalService creates an EvalService that runs every request on worker.
func NewEvalService(worker *Worker) *EvalService {
	return &EvalService{worker: worker}
}

// NewEvalServiceHandler builds an HTTP handler serving svc and returns the
// path prefix to mount it on.
func NewEvalServiceHandler(svc *EvalService, opts ...connect.HandlerOption) (string, http.Handler) {
	evaluate := connect.NewUnaryHandler(EvaluateProcedure, svc.Evaluate, opts...)
	disassemble := connect.NewUnaryHandler(DisassembleProcedure, svc.Disassemble, opts...)

	mux := http.NewServeMux()
	mux.Handle(EvaluateProcedure, evaluate)
	mux.Handle(DisassembleProcedure, disassemble)
	return "/" + EvalServiceName + "/", mux
}

// Evaluate compiles and runs an expression.
//
// Request: {source}. Response: {success, status, value, display,
// diagnostics[], fault}. value is omitted when the result is not finite,
// since JSON cannot carry NaN or infinities; display always carries it.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	source, err := sourceField(req.Msg)
	if err != nil {
		return nil, err
	}

	result, err := s.worker.Do(ctx, func() interface{} {
		return pipeline.Interpret(source, pipeline.Options{})
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	res := result.(*pipeline.Result)

	fields := map[string]interface{}{
		"success":     res.OK(),
		"status":      res.Status.String(),
		"diagnostics": diagnosticsList(res.Diagnostics),
	}
	if res.OK() {
		fields["display"] = res.Display()
		if !math.IsNaN(res.Value) && !math.IsInf(res.Value, 0) {
			fields["value"] = res.Value
		}
	}
	if res.Fault != nil {
		fields["fault"] = faultMap(res.Fault)
	}
	return newResponse(fields)
}

// Disassemble compiles an expression and returns its listing.
//
// Request: {source}. Response: {success, listing, diagnostics[]}.
func (s *EvalService) Disassemble(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	source, err := sourceField(req.Msg)
	if err != nil {
		return nil, err
	}

	result, err := s.worker.Do(ctx, func() interface{} {
		return pipeline.Compile(source, pipeline.Options{})
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	res := result.(*pipeline.Result)

	fields := map[string]interface{}{
		"success":     res.OK(),
		"diagnostics": diagnosticsList(res.Diagnostics),
	}
	if res.OK() {
		fields["listing"] = res.Chunk.DisassembleWithName("code")
	}
	return newResponse(fields)
}

func sourceField(msg *structpb.Struct) (string, error) {
	source := msg.GetFields()["source"].GetStringValue()
	if strings.TrimSpace(source) == "" {
		return "", connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	return source, nil
}

func newResponse(fields map[string]interface{}) (*connect.Response[structpb.Struct], error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func diagnosticsList(diags []*compiler.Diagnostic) []interface{} {
	out := make([]interface{}, 0, len(diags))
	for _, d := range diags {
		out = append(out, map[string]interface{}{
			"kind":    d.Kind.String(),
			"line":    float64(d.Line),
			"column":  float64(d.Column),
			"message": d.Message,
			"text":    d.Error(),
		})
	}
	return out
}

func faultMap(f *vm.RuntimeError) map[string]interface{} {
	return map[string]interface{}{
		"kind":    f.Kind.String(),
		"offset":  float64(f.Offset),
		"line":    float64(f.Line),
		"message": f.Message,
	}
}
