package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LoveWonYoung/cannuccia/boot"
	"github.com/LoveWonYoung/cannuccia/flash"
)

const envPrefix = "CANNUCCIA_"

type options struct {
	iface   string
	addr    uint8
	image   string
	sealKey []byte
	app     string
	appArgs []string
	logDir  string
	verbose bool

	timeout time.Duration
	arch    uint16
	geo     flash.Geometry
}

// env looks up CANNUCCIA_<NAME>.
type env func(key string) string

func (e env) str(name, fallback string) string {
	if v := e(envPrefix + name); v != "" {
		return v
	}
	return fallback
}

func (e env) number(name string, fallback uint64) uint64 {
	if v := e(envPrefix + name); v != "" {
		if n, err := strconv.ParseUint(v, 0, 32); err == nil {
			return n
		}
	}
	return fallback
}

func (e env) duration(name string, fallback time.Duration) time.Duration {
	if v := e(envPrefix + name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func (e env) enabled(name string) bool {
	b, _ := strconv.ParseBool(e(envPrefix + name))
	return b
}

// parseOptions reads flags from args, taking defaults from the environment.
func parseOptions(name string, args []string, getenv env, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  %s [OPTIONS] [-- APP_ARGS...]\nOptions:\n", name)
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "Every option can also be set as %s<NAME> (e.g. %sIFACE).\n", envPrefix, envPrefix)
	}

	iface := fs.String("iface", getenv.str("IFACE", "can0"), "CAN interface: SocketCAN name, toomoss[:bitrate] or mock")
	addr := fs.Uint("addr", uint(getenv.number("ADDR", 1)), "device address (0-255)")
	image := fs.String("image", getenv.str("IMAGE", "cannuccia.hex"), "Intel HEX file backing the simulated flash")
	key := fs.String("seal-key", getenv.str("SEAL_KEY", ""), "AES key (hex) for the image seal; empty disables sealing")
	app := fs.String("app", getenv.str("APP", ""), "application executed when the bootloader finishes")
	timeout := fs.Duration("timeout", getenv.duration("TIMEOUT", 3*time.Second), "idle time before starting the application")
	pageSize := fs.Uint("page-size", uint(getenv.number("PAGE_SIZE", 256)), "flash page size in bytes")
	flashSize := fs.Uint("flash-size", uint(getenv.number("FLASH_SIZE", 64*1024)), "flash size in bytes")
	reserved := fs.Uint("reserved", uint(getenv.number("RESERVED", 0)), "bytes at the start of flash that cannot be written")
	arch := fs.Uint("arch", uint(getenv.number("ARCH", uint64(boot.ArchLinux))), "architecture id reported to the host")
	logDir := fs.String("log", getenv.str("LOG", ""), "directory for rotated log files; empty logs to stderr only")
	verbose := fs.Bool("v", getenv.enabled("VERBOSE"), "log every dropped frame")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if *addr > 0xFF {
		return options{}, fmt.Errorf("address %d out of range", *addr)
	}
	if *arch > 0xFFFF {
		return options{}, fmt.Errorf("arch id %d out of range", *arch)
	}
	sealKey, err := parseKey(*key)
	if err != nil {
		return options{}, err
	}
	for name, v := range map[string]uint{"page-size": *pageSize, "flash-size": *flashSize, "reserved": *reserved} {
		if uint64(v) > math.MaxUint32 {
			return options{}, fmt.Errorf("-%s %d exceeds the 32-bit address space", name, v)
		}
	}
	geo := flash.Geometry{
		PageSize:     uint32(*pageSize),
		TotalSize:    uint32(*flashSize),
		ReservedSize: uint32(*reserved),
	}
	if err := geo.Validate(); err != nil {
		return options{}, err
	}

	return options{
		iface:   *iface,
		addr:    uint8(*addr),
		image:   *image,
		sealKey: sealKey,
		app:     *app,
		appArgs: fs.Args(),
		logDir:  *logDir,
		verbose: *verbose,
		timeout: *timeout,
		arch:    uint16(*arch),
		geo:     geo,
	}, nil
}

// parseKey decodes an AES-128/192/256 key written as hex. Spaces are allowed
// between bytes.
func parseKey(s string) ([]byte, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return nil, nil
	}
	if len(s)%2 != 0 {
		return nil, errors.New("seal key must have an even number of hex digits")
	}
	key := make([]byte, len(s)/2)
	for i := range key {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex in seal key at byte %d: %v", i, err)
		}
		key[i] = byte(v)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	}
	return nil, fmt.Errorf("seal key must be 16, 24 or 32 bytes, got %d", len(key))
}

func osEnv() env { return os.Getenv }
