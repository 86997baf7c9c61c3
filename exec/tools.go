package exec

import (
	"os/exec"
)

// toolCmd builds a *exec.Cmd for name with args, letting the OS resolve
// name from PATH the same way a shell invocation would.
func toolCmd(name string, args []string) *exec.Cmd {
	return exec.Command(name, args...)
}
