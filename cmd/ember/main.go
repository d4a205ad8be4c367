// Ember CLI - compiles and runs arithmetic expressions
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/color"
	"github.com/tliron/commonlog"

	"github.com/chazu/ember/manifest"
	"github.com/chazu/ember/pkg/bytecode"
	"github.com/chazu/ember/pkg/pipeline"
	"github.com/chazu/ember/server"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("ember.cli")

// Exit codes, following sysexits.h.
const (
	exitOK      = 0
	exitUsage   = 64
	exitCompile = 65
	exitIO      = 66
	exitRuntime = 70
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli holds the resolved settings and output streams for one invocation.
type cli struct {
	disassemble bool
	trace       bool
	output      string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	color  *color.Color
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	m.ApplyEnv()

	fs := flag.NewFlagSet("ember", flag.ContinueOnError)
	fs.SetOutput(stderr)
	trace := fs.Bool("trace", m.Run.Trace, "Trace each instruction as it executes")
	disassemble := fs.Bool("disassemble", m.Compile.Disassemble, "Print the compiled chunk before running it")
	output := fs.String("o", "", "Write the compiled chunk to `file` instead of running it")
	verbosity := fs.Int("v", m.Log.Verbosity, "Log verbosity (0 = quiet)")
	logFile := fs.String("log", m.Log.File, "Write logs to `file` instead of stderr")
	noColor := fs.Bool("no-color", false, "Disable coloured diagnostics")
	serveMode := fs.Bool("serve", false, "Start the evaluation server (Connect HTTP/JSON, gRPC, gRPC-Web)")
	addr := fs.String("addr", m.Server.Addr, "Listen address for -serve")
	lspMode := fs.Bool("lsp", false, "Start the language server on stdio")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: ember [options] [path]\n\n")
		fmt.Fprintf(stderr, "Compiles and runs the expression in path, or starts a REPL without one.\n")
		fmt.Fprintf(stderr, "A path holding a compiled chunk (see -o) is run directly.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  ember expr.em              # Compile and run\n")
		fmt.Fprintf(stderr, "  ember -disassemble expr.em # Show bytecode, then run\n")
		fmt.Fprintf(stderr, "  ember -o expr.emc expr.em  # Compile only\n")
		fmt.Fprintf(stderr, "  ember expr.emc             # Run a compiled chunk\n")
		fmt.Fprintf(stderr, "  ember -serve -addr :8080   # Evaluation server\n")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	configureLogging(*verbosity, *logFile)

	c := &cli{
		disassemble: *disassemble,
		trace:       *trace,
		output:      *output,
		stdin:       stdin,
		stdout:      stdout,
		stderr:      stderr,
		color:       color.New(),
	}
	c.color.SetOutput(stderr)
	if f, ok := stderr.(*os.File); *noColor || os.Getenv("NO_COLOR") != "" || !ok || f != os.Stderr {
		c.color.Disable()
	}

	switch {
	case *lspMode:
		if err := server.NewLSP().Run(); err != nil {
			c.errorf("Error: %v", err)
			return exitIO
		}
		return exitOK
	case *serveMode:
		if err := serve(ctx, *addr); err != nil {
			c.errorf("Error: %v", err)
			return exitIO
		}
		return exitOK
	}

	switch fs.NArg() {
	case 0:
		return c.repl()
	case 1:
		return c.runFile(fs.Arg(0))
	default:
		fs.Usage()
		return exitUsage
	}
}

func configureLogging(verbosity int, file string) {
	var path *string
	if file != "" {
		path = &file
	}
	commonlog.Configure(verbosity, path)
	if verbosity <= 0 && file == "" {
		commonlog.SetMaxLevel(commonlog.None)
	}
}

// runFile compiles (or loads) and runs the program in path.
func (c *cli) runFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		c.errorf("Could not read file %q: %v", path, err)
		return exitIO
	}

	opts := c.options()

	if bytecode.IsChunkData(data) {
		chunk, err := bytecode.UnmarshalChunk(data)
		if err != nil {
			c.errorf("Error loading %s: %v", path, err)
			return exitCompile
		}
		log.Infof("loaded compiled chunk %s (%d bytes of code)", path, chunk.Len())
		if c.disassemble {
			chunk.WriteDisassembly(c.stderr, path)
		}
		return c.report(pipeline.Execute(chunk, opts))
	}

	if c.output != "" {
		res := pipeline.Compile(string(data), opts)
		if !res.OK() {
			return c.report(res)
		}
		return c.writeChunk(res.Chunk)
	}

	return c.report(pipeline.Interpret(string(data), opts))
}

// options sends listings and traces to stderr; stdout carries only results.
func (c *cli) options() pipeline.Options {
	var opts pipeline.Options
	if c.disassemble {
		opts.Disassembly = c.stderr
	}
	if c.trace {
		opts.Trace = c.stderr
	}
	return opts
}

func (c *cli) writeChunk(chunk *bytecode.Chunk) int {
	data, err := bytecode.MarshalChunk(chunk)
	if err != nil {
		c.errorf("Error encoding chunk: %v", err)
		return exitIO
	}
	if err := os.WriteFile(c.output, data, 0644); err != nil {
		c.errorf("Could not write file %q: %v", c.output, err)
		return exitIO
	}
	log.Infof("wrote %s (%d bytes)", c.output, len(data))
	return exitOK
}

// report prints the outcome of res and returns the matching exit code.
func (c *cli) report(res *pipeline.Result) int {
	switch {
	case len(res.Diagnostics) > 0:
		for _, d := range res.Diagnostics {
			c.errorf("%s", d.Error())
		}
		return exitCompile
	case res.Fault != nil:
		c.errorf("%s", res.Fault.Error())
		return exitRuntime
	case !res.OK():
		c.errorf("Error: %v", res.Err())
		return exitRuntime
	}
	fmt.Fprintln(c.stdout, res.Display())
	return exitOK
}

func (c *cli) errorf(format string, args ...interface{}) {
	fmt.Fprintln(c.stderr, c.color.Red(fmt.Sprintf(format, args...)))
}
