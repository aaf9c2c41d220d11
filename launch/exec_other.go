//go:build !linux || tinygo || baremetal

package launch

import (
	"errors"
	"log"
)

var errExecUnsupported = errors.New("exec hand-off is only supported on Linux")

func (e Exec) Check() error { return errExecUnsupported }

func (e Exec) Launch() {
	log.Fatalf("[launch] %s: %v", e.Path, errExecUnsupported)
}
