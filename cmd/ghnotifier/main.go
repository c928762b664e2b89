package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"ghnotifier/internal/app"
)

var version = "dev"

type options struct {
	Config  string `long:"config" short:"c" env:"GHNOTIFIER_CONFIG" description:"path to a YAML or JSON config file (defaults apply when empty)"`
	Once    bool   `long:"once" description:"run a single poll cycle and exit"`
	Version bool   `long:"version" short:"V" description:"print the version and exit"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}
	if opts.Version {
		fmt.Println("ghnotifier", version)
		return
	}

	token, ok := os.LookupEnv("GITHUB_TOKEN")
	if !ok || strings.TrimSpace(token) == "" {
		fmt.Fprintln(os.Stderr, "fatal: GITHUB_TOKEN must be set to a personal access token with the notifications scope")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: opts.Config, Token: token, Version: version})
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if opts.Once {
		_, err := a.RunOnce(ctx)
		_ = stop(a)
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		return
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}
	runErr := a.Err()
	if err := stop(a); err != nil {
		fmt.Fprintln(os.Stderr, "stop:", err)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "fatal:", runErr)
		os.Exit(1)
	}
}

func stop(a *app.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return a.Stop(ctx)
}
