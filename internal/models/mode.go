package models

import (
	"fmt"
	"strings"
)

// Mode is one of the six relay configurations the compressor can be driven into.
type Mode string

const (
	ModeRest  Mode = "rest"
	ModeRun   Mode = "run"
	ModePurge Mode = "purge"
	ModeBurp  Mode = "burp"
	ModeBleed Mode = "bleed"
	ModeLeak  Mode = "leak"
)

// Symbolic relay codes that drive the shutdown relay only.
const (
	WireShutdown = "shutdown"
	WireNormal   = "normal"
)

// RelayVector is the on/off state of the four relay outputs.
type RelayVector struct {
	Motor  bool `json:"motor"`
	Valve1 bool `json:"v1"`
	Valve2 bool `json:"v2"`
	Valve5 bool `json:"v5"`
}

type modeEntry struct {
	relays RelayVector
	code   int
}

// relayModeTable is the single encoding of relay semantics in the process.
var relayModeTable = map[Mode]modeEntry{
	ModeRest:  {relays: RelayVector{}, code: 0},
	ModeRun:   {relays: RelayVector{Motor: true, Valve1: true, Valve5: true}, code: 1},
	ModePurge: {relays: RelayVector{Motor: true, Valve2: true}, code: 2},
	ModeBurp:  {relays: RelayVector{Valve5: true}, code: 3},
	ModeBleed: {relays: RelayVector{Valve2: true, Valve5: true}, code: 8},
	ModeLeak:  {relays: RelayVector{Valve1: true, Valve2: true, Valve5: true}, code: 9},
}

// AllModes lists the modes in wire-code order.
var AllModes = []Mode{ModeRest, ModeRun, ModePurge, ModeBurp, ModeBleed, ModeLeak}

// RelayVectorFor returns the relay outputs for m. Unknown modes map to Rest.
func RelayVectorFor(m Mode) RelayVector {
	return relayModeTable[m.orRest()].relays
}

// WireCodeFor returns the numeric code sent to the microcontroller for m.
func WireCodeFor(m Mode) int {
	return relayModeTable[m.orRest()].code
}

// ModeForWireCode resolves an echoed relay code back to a Mode.
func ModeForWireCode(code int) (Mode, bool) {
	for _, m := range AllModes {
		if relayModeTable[m].code == code {
			return m, true
		}
	}
	return "", false
}

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := relayModeTable[m]; !ok {
		return "", fmt.Errorf("ParseMode: unknown mode %q", s)
	}
	return m, nil
}

// Valid reports whether m is one of the six modes.
func (m Mode) Valid() bool {
	_, ok := relayModeTable[m]
	return ok
}

func (m Mode) orRest() Mode {
	if m.Valid() {
		return m
	}
	return ModeRest
}

// ModeStatus is the register as reported to operators.
type ModeStatus struct {
	Mode     Mode        `json:"mode"`
	Revision uint64      `json:"revision"`
	WireCode int         `json:"wire_code"`
	Relays   RelayVector `json:"relays"`
}
