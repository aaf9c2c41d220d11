//go:build linux && !tinygo && !baremetal

package launch

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/sys/unix"
)

// Check verifies the application exists and is executable.
func (e Exec) Check() error {
	if e.Path == "" {
		return fmt.Errorf("no application path")
	}
	if err := unix.Access(e.Path, unix.X_OK); err != nil {
		return fmt.Errorf("%s: %w", e.Path, err)
	}
	return nil
}

// Launch calls execve and never returns. If the exec fails there is nothing
// left to run, so the process exits.
func (e Exec) Launch() {
	env := e.Env
	if env == nil {
		env = os.Environ()
	}
	log.Printf("[launch] exec %s", e.Path)
	err := unix.Exec(e.Path, e.argv(), env)
	log.Fatalf("[launch] exec %s failed: %v", e.Path, err)
}
