// Package launch hands control from the bootloader to the application.
package launch

// Func adapts a function to a launcher.
type Func func()

func (f Func) Launch() { f() }

// Exec replaces the bootloader process with the application binary.
// It is only functional on Linux.
type Exec struct {
	Path string
	Args []string
	// Env defaults to the bootloader's environment.
	Env []string
}

func (e Exec) argv() []string {
	return append([]string{e.Path}, e.Args...)
}
