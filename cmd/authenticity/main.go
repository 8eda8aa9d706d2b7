// authenticity registers media content on a Neo N3 ledger and inspects past
// registrations.
//
// Usage:
//
//	authenticity register --config <file> <path>
//	authenticity lookup   --config <file> <fingerprint|path>
//	authenticity confirm  --config <file> <transaction ID>
//	authenticity history  --config <file> [fingerprint|path]
//
// Results are printed to stdout as JSON, logs go to stderr. Failures are
// printed as a JSON error descriptor and exit with status 1.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nspcc-dev/neofs-authenticity/config"
	"github.com/nspcc-dev/neofs-authenticity/failure"
	"github.com/nspcc-dev/neofs-authenticity/pipeline"
	"github.com/spf13/pflag"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usage = `Usage: authenticity <command> [flags] [args]

Commands:
  register <path>                  register content and print the receipt
  lookup <fingerprint|path>        print the on-chain record of content
  confirm <transaction ID>         print the execution result of a registration
  history [fingerprint|path]       print journaled receipts

Run 'authenticity <command> --help' for command flags.
`

type command struct {
	name  string
	args  string
	nArgs [2]int // min, max
	run   func(ctx context.Context, env *cmdEnv, args []string) error
}

var commands = []command{
	{"register", "<path>", [2]int{1, 1}, runRegister},
	{"lookup", "<fingerprint|path>", [2]int{1, 1}, runLookup},
	{"confirm", "<transaction ID>", [2]int{1, 1}, runConfirm},
	{"history", "[fingerprint|path]", [2]int{0, 1}, runHistory},
}

// cmdEnv is shared by all commands.
type cmdEnv struct {
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
	limit  int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	env := &cmdEnv{stdout: stdout, stderr: stderr}

	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.StringP("config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "path to the YAML configuration file")
	if cmd.name == "history" {
		fs.IntVarP(&env.limit, "limit", "n", 20, "number of receipts listed without a fingerprint")
	}
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: authenticity %s [flags] %s\n\nFlags:\n%s", cmd.name, cmd.args, fs.FlagUsages())
	}

	err := fs.Parse(args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if n := fs.NArg(); n < cmd.nArgs[0] || n > cmd.nArgs[1] {
		fs.Usage()
		return exitUsage
	}

	if *configPath == "" {
		fmt.Fprintln(stderr, "missing --config")
		return exitUsage
	}

	env.cfg, err = config.Load(*configPath)
	if err != nil {
		return env.fail(err)
	}

	err = cmd.run(ctx, env, fs.Args())
	if err != nil {
		return env.fail(err)
	}

	return exitOK
}

// errorDescriptor is printed for every failed command.
type errorDescriptor struct {
	Kind        failure.Kind `json:"kind"`
	Message     string       `json:"message"`
	ClientFault bool         `json:"clientFault"`
	Retryable   bool         `json:"retryable"`
	Phase       string       `json:"phase,omitempty"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	RunID       string       `json:"runId,omitempty"`
}

func describe(err error) errorDescriptor {
	kind := failure.KindOf(err)

	d := errorDescriptor{
		Kind:        kind,
		Message:     err.Error(),
		ClientFault: kind.ClientFault(),
		Retryable:   kind.Retryable(),
	}

	var runErr *pipeline.RunError
	if errors.As(err, &runErr) {
		d.Phase = runErr.Phase.String()
		d.RunID = runErr.RunID.String()
		if runErr.Fingerprint != nil {
			d.Fingerprint = runErr.Fingerprint.String()
		}
	}

	return d
}

func (e *cmdEnv) fail(err error) int {
	_ = e.print(describe(err))
	return exitFailure
}

func (e *cmdEnv) print(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
