package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/chazu/ember/pkg/pipeline"
)

// repl evaluates one expression per input line until EOF or "exit".
func (c *cli) repl() int {
	fmt.Fprintln(c.stdout, "Ember REPL (type 'exit' to quit)")

	scanner := bufio.NewScanner(c.stdin)
	for {
		fmt.Fprint(c.stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.stdout)
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			break
		}
		if line == "" {
			continue
		}

		// Errors are reported and the session carries on.
		c.report(pipeline.Interpret(line, c.options()))
	}
	if err := scanner.Err(); err != nil {
		c.errorf("Error reading input: %v", err)
		return exitIO
	}
	return exitOK
}
