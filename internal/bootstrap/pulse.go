package bootstrap

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ErrNoMatchingSource is returned when no PulseAudio input matches the
// configured keywords.
var ErrNoMatchingSource = errors.New("bootstrap: no matching input source")

// Runner runs an external command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Source is one line of `pactl list short sources`.
type Source struct {
	Index  string
	Name   string
	Driver string
	Spec   string
	State  string
}

// IsInput reports whether the source is a capture device rather than the
// monitor of an output.
func (s Source) IsInput() bool { return strings.Contains(s.Name, "input") }

// Pulse talks to PulseAudio (or PipeWire's pulse shim) through pactl.
type Pulse struct {
	run    Runner
	binary string
}

// PulseOption configures [Pulse].
type PulseOption func(*Pulse)

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r Runner) PulseOption {
	return func(p *Pulse) { p.run = r }
}

// NewPulse returns a pactl client.
func NewPulse(opts ...PulseOption) *Pulse {
	p := &Pulse{run: ExecRunner, binary: "pactl"}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Sources lists every source pactl reports.
func (p *Pulse) Sources(ctx context.Context) ([]Source, error) {
	out, err := p.run(ctx, p.binary, "list", "short", "sources")
	if err != nil {
		return nil, fmt.Errorf("bootstrap: list sources: %w", err)
	}
	var sources []Source
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) < 2 || fields[1] == "" {
			continue
		}
		s := Source{Index: fields[0], Name: fields[1]}
		if len(fields) > 2 {
			s.Driver = fields[2]
		}
		if len(fields) > 3 {
			s.Spec = fields[3]
		}
		if len(fields) > 4 {
			s.State = fields[4]
		}
		sources = append(sources, s)
	}
	return sources, sc.Err()
}

// RepairDefaultSource makes the first input source whose name contains one
// of keywords (case-insensitive) the default, and returns its name.
func (p *Pulse) RepairDefaultSource(ctx context.Context, keywords []string) (string, error) {
	sources, err := p.Sources(ctx)
	if err != nil {
		return "", err
	}
	target := ""
	for _, s := range sources {
		if s.IsInput() && containsAny(s.Name, keywords) {
			target = s.Name
			break
		}
	}
	if target == "" {
		return "", fmt.Errorf("%w: keywords %v among %d sources", ErrNoMatchingSource, keywords, len(sources))
	}
	if _, err := p.run(ctx, p.binary, "set-default-source", target); err != nil {
		return "", fmt.Errorf("bootstrap: set default source %q: %w", target, err)
	}
	slog.Info("default input source changed", "source", target)
	return target, nil
}

func containsAny(s string, keywords []string) bool {
	ls := strings.ToLower(s)
	for _, k := range keywords {
		if k != "" && strings.Contains(ls, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
