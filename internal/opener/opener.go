package opener

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"ghnotifier/pkg/logx"
)

type Config struct {
	// Command overrides the platform viewer. The URL is appended as the last
	// argument; fields are split on whitespace.
	Command string
	Timeout time.Duration
}

// runner starts a command and waits for it.
type runner func(ctx context.Context, name string, args ...string) error

// pipeGrace bounds how long Wait keeps reading stderr after the launcher
// exits. Launchers often leave the viewer holding the inherited pipe.
const pipeGrace = 250 * time.Millisecond

// execRun waits for the launcher only. Stdout goes to the null device and
// stderr is kept for the error message.
func execRun(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeGrace
	err := cmd.Run()
	if errors.Is(err, exec.ErrWaitDelay) {
		// The launcher exited cleanly; a child still holds stderr.
		return nil
	}
	if err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return fmt.Errorf("%s: %w: %s", name, err, s)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Opener launches the platform's default viewer for a URL.
type Opener struct {
	cfg  Config
	goos string
	run  runner
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Opener {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Opener{cfg: cfg, goos: runtime.GOOS, run: execRun, log: log}
}

// Open runs the launcher and waits at most the configured timeout for it to
// exit. The viewer it spawns is not waited for.
func (o *Opener) Open(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("empty url")
	}
	name, args, err := o.command(url)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()
	if err := o.run(ctx, name, args...); err != nil {
		return err
	}
	o.log.Debug("opened", logx.String("url", url))
	return nil
}

func (o *Opener) command(url string) (string, []string, error) {
	if fields := strings.Fields(o.cfg.Command); len(fields) > 0 {
		return fields[0], append(fields[1:], url), nil
	}
	switch o.goos {
	case "darwin":
		return "open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly", "solaris", "illumos":
		return "xdg-open", []string{url}, nil
	default:
		return "", nil, fmt.Errorf("no default viewer on %s; set opener.command", o.goos)
	}
}
