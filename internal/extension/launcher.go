package extension

import (
	"os"
	"os/exec"
)

// ProcessLauncher is the real Launcher: it forks each vetted autoload
// path as a detached child process, passing through the manager's own
// environment (an autoloaded extension needs SENTRYD_SOCKET-style
// hand-off exactly like the parent's own flags, not a clean slate).
type ProcessLauncher struct {
	// ExtraArgs is appended to every launched command, e.g.
	// []string{"extension", "--socket", managerAddr}.
	ExtraArgs []string
}

var _ Launcher = (*ProcessLauncher)(nil)

// Launch starts path as a detached child and returns once it has
// forked; it does not wait for the child to exit.
func (l *ProcessLauncher) Launch(path string) error {
	cmd := exec.Command(path, l.ExtraArgs...) // #nosec G204 -- path vetted by LoadExtensions/isFileSafe, or passed unvetted via LoadSingleUnsafe
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return errAutoload("launch "+path, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
