// Package indicator provides debug LED variants for the bootloader.
package indicator

import (
	"log"
	"sync"
)

// None is used on boards without a usable LED.
type None struct{}

func (None) Init() error { return nil }
func (None) Set(bool)    {}

// Log reports LED changes through the standard logger.
type Log struct {
	Name string

	mu sync.Mutex
	on bool
}

func (l *Log) Init() error {
	log.Printf("[LED] %s ready", l.name())
	return nil
}

func (l *Log) Set(on bool) {
	l.mu.Lock()
	changed := l.on != on
	l.on = on
	l.mu.Unlock()
	if !changed {
		return
	}
	state := "off"
	if on {
		state = "on"
	}
	log.Printf("[LED] %s %s", l.name(), state)
}

// On reports the last state set.
func (l *Log) On() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

func (l *Log) name() string {
	if l.Name == "" {
		return "debug"
	}
	return l.Name
}

// Output is a GPIO line. machine.Pin satisfies it.
type Output interface {
	Set(high bool)
}

// GPIO drives an LED on a pin.
type GPIO struct {
	Pin Output
	// Setup configures the pin as an output, if needed.
	Setup func() error
	// ActiveLow inverts the pin level.
	ActiveLow bool
}

func (g *GPIO) Init() error {
	if g.Setup != nil {
		if err := g.Setup(); err != nil {
			return err
		}
	}
	g.Set(false)
	return nil
}

func (g *GPIO) Set(on bool) {
	g.Pin.Set(on != g.ActiveLow)
}
