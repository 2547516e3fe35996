package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var _ Player = (*CommandPlayer)(nil)

// CommandPlayer plays audio by piping raw S16LE PCM into an external player
// such as ALSA's aplay. It holds no device state; every Play call starts a
// fresh process.
type CommandPlayer struct {
	// Binary is the player executable. Default: "aplay".
	Binary string

	// ExtraArgs are appended before the trailing "-" (stdin) argument.
	ExtraArgs []string
}

// Play writes pcm to the player's stdin and waits for it to exit.
func (p *CommandPlayer) Play(ctx context.Context, pcm []int16, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	bin := p.Binary
	if bin == "" {
		bin = "aplay"
	}
	args := []string{"-q", "-r", strconv.Itoa(sampleRate), "-f", "S16_LE", "-t", "raw", "-c", "1"}
	args = append(args, p.ExtraArgs...)
	args = append(args, "-")

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = bytes.NewReader(Int16ToBytes(pcm))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("audio: %s: %w: %s", bin, err, msg)
		}
		return fmt.Errorf("audio: %s: %w", bin, err)
	}
	return nil
}
