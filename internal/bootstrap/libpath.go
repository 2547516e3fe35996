// Package bootstrap prepares the host before audio capture starts: it makes
// shared libraries such as onnxruntime or CUDA visible to the dynamic loader,
// and it can point PulseAudio at the right microphone.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
)

// MarkerEnv is set on the re-executed process so it never re-executes again.
const MarkerEnv = "TRANSLATOR_LIBS_READY"

const libraryPathEnv = "LD_LIBRARY_PATH"

// process abstracts the parts of the OS the re-exec touches.
type process struct {
	getenv     func(string) string
	environ    func() []string
	executable func() (string, error)
	args       []string
	exec       func(argv0 string, argv, envv []string) error
}

func osProcess() process {
	return process{
		getenv:     os.Getenv,
		environ:    os.Environ,
		executable: os.Executable,
		args:       os.Args,
		exec:       syscall.Exec,
	}
}

// EnsureLibraryPath re-executes the running binary once with paths appended
// to LD_LIBRARY_PATH. The dynamic loader reads that variable only at process
// start, so setting it in-process has no effect on libraries loaded later.
//
// It returns nil without re-executing when paths is empty, when every path
// is already present, or when the process was itself started by a previous
// re-exec. On success it does not return.
func EnsureLibraryPath(paths []string) error {
	return ensureLibraryPath(paths, osProcess())
}

func ensureLibraryPath(paths []string, p process) error {
	if len(paths) == 0 || p.getenv(MarkerEnv) != "" {
		return nil
	}
	current := p.getenv(libraryPathEnv)
	have := filepath.SplitList(current)

	var missing []string
	for _, dir := range paths {
		dir = filepath.Clean(dir)
		if !slices.Contains(have, dir) && !slices.Contains(missing, dir) {
			missing = append(missing, dir)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	bin, err := p.executable()
	if err != nil {
		return fmt.Errorf("bootstrap: locate executable: %w", err)
	}
	joined := strings.Join(missing, string(filepath.ListSeparator))
	if current != "" {
		joined = current + string(filepath.ListSeparator) + joined
	}
	env := setEnv(p.environ(), libraryPathEnv, joined)
	env = setEnv(env, MarkerEnv, "1")

	slog.Info("re-executing with library path", "added", missing)
	if err := p.exec(bin, p.args, env); err != nil {
		return fmt.Errorf("bootstrap: re-exec %s: %w", bin, err)
	}
	return nil
}

// setEnv returns env with key set to value, replacing any existing entry.
func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return append(out, prefix+value)
}
