//go:build !unix

package analyzer

import "os/exec"

// killProcessGroupOnCancel kills the analyzer process when its context is done.
//
// Process groups are a unix concept, elsewhere only the direct child is killed.
func killProcessGroupOnCancel(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}
}
