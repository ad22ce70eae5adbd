// Command council runs AI council sessions in the terminal.
//
// Usage:
//
//	council auto -topic "remote work" -duration 3 -out ./audio
//	council live -kind debate -topic "nuclear power"
//	council history
//	council replay -id <session id>
//	council keys -murf <key>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vango-go/vai-council/pkg/config"
)

const usage = `usage: council <command> [flags]

commands:
  auto      generate and play a scripted panel discussion
  live      take part in a live discussion, debate or interview
  history   list or delete saved sessions
  replay    replay a saved session
  keys      show or update stored API keys

Run "council <command> -h" for command flags.
`

type cliDeps struct {
	loadDotenv func(filenames ...string) error
	loadConfig func(path string) (*config.Config, error)
	stdin      io.Reader
	stdout     io.Writer
}

func defaultCLIDeps() cliDeps {
	return cliDeps{
		loadDotenv: godotenv.Load,
		loadConfig: config.Load,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
	}
}

var commands = map[string]func(ctx context.Context, c *cli, args []string) error{
	"auto":    runAuto,
	"live":    runLive,
	"history": runHistory,
	"replay":  runReplay,
	"keys":    runKeys,
}

func runMain(ctx context.Context, args []string, stderr io.Writer, deps cliDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	run, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "council: unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if deps.loadConfig == nil {
		fmt.Fprintln(stderr, "council: missing loadConfig dependency")
		return 1
	}

	if deps.loadDotenv != nil {
		if err := deps.loadDotenv(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stderr, "council: load .env: %v\n", err)
			return 1
		}
	}

	c := &cli{deps: deps, stderr: stderr}
	if err := run(ctx, c, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "council %s: %v\n", args[0], err)
		var ue usageError
		if errors.As(err, &ue) {
			return 2
		}
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stderr, defaultCLIDeps())
	stop()
	os.Exit(code)
}
