// Command ordersync lists, shows and updates Fake Store orders through a
// querycache client.
//
// Settings come from ORDERSYNC_* environment variables; see internal/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/unkn0wn-root/querycache/internal/config"
)

var errUsage = errors.New("usage")

const usageText = `usage: ordersync <command> [flags]

commands:
  list        [-status pending|paid|shipped]
  show        -id N
  set-status  -id N -status pending|paid|shipped
`

type command func(a *app, ctx context.Context, args []string, out io.Writer) error

var commands = map[string]command{
	"list":       (*app).list,
	"show":       (*app).show,
	"set-status": (*app).setStatus,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "ordersync: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return errUsage
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(stdout, usageText)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(stderr, usageText)
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer a.close()
	return cmd(a, ctx, args[1:], stdout)
}
