// Command cannuccia runs the CAN bootloader on a Linux host. Flash is
// simulated and persisted as an Intel HEX file; when the session ends the
// configured application binary replaces the process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LoveWonYoung/cannuccia/boot"
	"github.com/LoveWonYoung/cannuccia/countdown"
	"github.com/LoveWonYoung/cannuccia/driver"
	"github.com/LoveWonYoung/cannuccia/flash/sim"
	"github.com/LoveWonYoung/cannuccia/indicator"
	"github.com/LoveWonYoung/cannuccia/launch"
	"github.com/LoveWonYoung/cannuccia/logrecorder"
)

func main() {
	opts, err := parseOptions(os.Args[0], os.Args[1:], osEnv(), os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var rec *logrecorder.Recorder
	if opts.logDir != "" {
		if rec, err = logrecorder.New(opts.logDir, "cannuccia_", true); err != nil {
			log.Fatal(err)
		}
		rec.Rotate(5 * time.Minute)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	start, err := openAndServe(ctx, opts)
	stop()
	if rec != nil {
		rec.Close()
	}
	if err != nil {
		log.Fatal(err)
	}
	if !start {
		os.Exit(1)
	}
	launch.Exec{Path: opts.app, Args: opts.appArgs}.Launch()
}

func openAndServe(ctx context.Context, opts options) (bool, error) {
	dev, err := driver.Open(opts.iface)
	if err != nil {
		return false, err
	}
	return session(ctx, opts, dev)
}

// session runs one bootloader session on dev and persists the flash image.
// It reports whether the application should be started.
func session(ctx context.Context, opts options, dev driver.CANDriver) (bool, error) {
	store, err := sim.New(opts.geo)
	if err != nil {
		return false, err
	}
	trusted := loadImage(store, opts)

	bus, err := driver.NewAdapter(dev)
	if err != nil {
		return false, err
	}
	defer bus.Close()

	cfg := boot.DefaultConfig()
	cfg.IdleTimeout = opts.timeout
	cfg.ArchID = opts.arch

	eng, err := boot.New(cfg, boot.Hardware{
		Transport: bus,
		Flash:     store,
		Timer:     countdown.New(),
		Indicator: &indicator.Log{Name: "boot"},
		Identity:  boot.StaticAddress(opts.addr),
	}, boot.WithLogger(boot.StdLogger{Verbose: opts.verbose}))
	if err != nil {
		return false, err
	}

	serveErr := eng.Serve(ctx)

	if n := store.Commits(); n > 0 {
		log.Printf("[cannuccia] %d page(s) written, saving %s", n, opts.image)
		if err := store.SaveFile(opts.image); err != nil {
			return false, err
		}
		if opts.sealKey != nil {
			if err := store.WriteSeal(opts.image, opts.sealKey); err != nil {
				return false, err
			}
		}
		trusted = true
	}

	if serveErr != nil {
		log.Printf("[cannuccia] interrupted: %v", serveErr)
		return false, nil
	}
	if opts.app == "" {
		log.Printf("[cannuccia] no application configured")
		return false, nil
	}
	if !trusted {
		log.Printf("[cannuccia] image seal does not match, not starting %s", opts.app)
		return false, nil
	}
	if err := (launch.Exec{Path: opts.app}).Check(); err != nil {
		return false, err
	}
	return true, nil
}

// loadImage fills store from the image file, if there is one, and checks its
// seal. A missing image leaves the flash erased.
func loadImage(store *sim.Store, opts options) bool {
	if err := store.LoadFile(opts.image); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("[cannuccia] %s not found, starting with erased flash", opts.image)
		} else {
			log.Printf("[cannuccia] load %s: %v", opts.image, err)
			store.Erase()
		}
		return opts.sealKey == nil
	}
	if opts.sealKey == nil {
		return true
	}
	if err := store.VerifyFile(opts.image, opts.sealKey); err != nil {
		log.Printf("[cannuccia] verify %s: %v", opts.image, err)
		return false
	}
	return true
}
