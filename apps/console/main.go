package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/promotion"
)

const (
	exitFailure         = 1
	exitUnauthenticated = 2
)

// SilentExitError reports an exit code for a failure that was already shown to the operator.
type SilentExitError struct {
	Code int
}

func (e SilentExitError) Error() string {
	return fmt.Sprintf("exit %d", e.Code)
}

func main() {
	os.Exit(runMain(os.Args, os.Stdout, os.Stderr))
}

func runMain(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := &commandLine{
		prompter:   newHuhPrompter(),
		isTerminal: isInteractive,
		out:        stdout,
		errOut:     stderr,
	}
	return cli.report(cli.run(ctx, args[1:]))
}

// report prints err and maps it to the process exit code.
func (cli *commandLine) report(err error) int {
	if err == nil {
		return 0
	}

	var silent SilentExitError
	if errors.As(err, &silent) {
		return silent.Code
	}
	if errors.Is(err, errHelp) {
		return exitFailure
	}
	if promotion.IsUnauthenticated(err) {
		cli.unauthenticated(err)
		return exitUnauthenticated
	}

	msg := err.Error()
	var vErr *core.ValidationError
	if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
		msg = vErr.Summary()
	}
	_, _ = fmt.Fprintln(cli.errOut, color.RedString("error: %s", msg))
	return exitFailure
}
