package main

import (
	"log"
	"sync"
)

// ledLogger logs LED changes in place of the indicator LEDs.
type ledLogger struct {
	mu         sync.Mutex
	red, green bool
}

func (l *ledLogger) SetRed(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.red != on {
		l.red = on
		l.log()
	}
}

func (l *ledLogger) SetGreen(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.green != on {
		l.green = on
		l.log()
	}
}

func (l *ledLogger) log() {
	log.Printf("led red=%t green=%t", l.red, l.green)
}
