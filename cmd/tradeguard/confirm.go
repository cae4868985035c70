package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rickgao/kalshi-guard/internal/guardrail"
)

type readResult struct {
	line string
	err  error
}

// stdinConfirm asks the operator on out and reads the answer from in. Only
// y or yes approves.
func stdinConfirm(in io.Reader, out io.Writer) guardrail.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, summary string) (bool, error) {
		fmt.Fprintf(out, "%s\nSubmit this order? [y/N]: ", summary)

		answer := make(chan readResult, 1)
		go func() {
			line, err := reader.ReadString('\n')
			answer <- readResult{line: line, err: err}
		}()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case r := <-answer:
			if r.err != nil && r.line == "" {
				return false, fmt.Errorf("read confirmation: %w", r.err)
			}
			switch strings.ToLower(strings.TrimSpace(r.line)) {
			case "y", "yes":
				return true, nil
			}
			return false, nil
		}
	}
}
