package simrun

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidAction marks control input that cannot be parsed.
var ErrInvalidAction = errors.New("invalid control action")

// ActionKind names an operator input.
type ActionKind string

const (
	ActionSwap   ActionKind = "swap"
	ActionPause  ActionKind = "pause"
	ActionResume ActionKind = "resume"
	ActionSpeed  ActionKind = "speed"
)

// SwapMode selects how scheduled profile swaps are applied.
type SwapMode string

const (
	SwapSafe      SwapMode = "safe"
	SwapImmediate SwapMode = "immediate"
)

// ParseSwapMode accepts "safe" (the default for empty input) or "immediate".
func ParseSwapMode(s string) (SwapMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(SwapSafe):
		return SwapSafe, nil
	case string(SwapImmediate):
		return SwapImmediate, nil
	default:
		return "", fmt.Errorf("%w: swap mode %q (want safe or immediate)", ErrInvalidAction, s)
	}
}

// Action is one scripted operator input, applied before the given tick runs.
// An empty Machine applies to every machine in the run.
type Action struct {
	Tick    int
	Machine string
	Kind    ActionKind
	Profile string
	Speed   float64
}

// ParseSwap parses "[MACHINE:]TICK=PROFILE".
func ParseSwap(input string) (Action, error) {
	machine, rest := splitMachine(input)
	tickPart, profile, ok := strings.Cut(rest, "=")
	profile = strings.TrimSpace(profile)
	if !ok || profile == "" {
		return Action{}, fmt.Errorf("%w: swap %q (want [MACHINE:]TICK=PROFILE)", ErrInvalidAction, input)
	}
	tick, err := parseTick(tickPart)
	if err != nil {
		return Action{}, fmt.Errorf("%w: swap %q: %v", ErrInvalidAction, input, err)
	}
	return Action{Tick: tick, Machine: machine, Kind: ActionSwap, Profile: profile}, nil
}

// ParsePause parses "[MACHINE:]TICK".
func ParsePause(input string) (Action, error) { return parseTickAction(ActionPause, input) }

// ParseResume parses "[MACHINE:]TICK".
func ParseResume(input string) (Action, error) { return parseTickAction(ActionResume, input) }

// ParseSpeed parses "[MACHINE:]TICK=SPEED". A bare "SPEED" applies from the
// first tick.
func ParseSpeed(input string) (Action, error) {
	machine, rest := splitMachine(input)
	tickPart, speedPart, ok := strings.Cut(rest, "=")
	if !ok {
		tickPart, speedPart = "0", rest
	}
	tick, err := parseTick(tickPart)
	if err != nil {
		return Action{}, fmt.Errorf("%w: speed %q: %v", ErrInvalidAction, input, err)
	}
	speed, err := strconv.ParseFloat(strings.TrimSpace(speedPart), 64)
	if err != nil {
		return Action{}, fmt.Errorf("%w: speed %q: %v", ErrInvalidAction, input, err)
	}
	return Action{Tick: tick, Machine: machine, Kind: ActionSpeed, Speed: speed}, nil
}

func parseTickAction(kind ActionKind, input string) (Action, error) {
	machine, rest := splitMachine(input)
	tick, err := parseTick(rest)
	if err != nil {
		return Action{}, fmt.Errorf("%w: %s %q: %v", ErrInvalidAction, kind, input, err)
	}
	return Action{Tick: tick, Machine: machine, Kind: kind}, nil
}

func splitMachine(input string) (string, string) {
	machine, rest, ok := strings.Cut(strings.TrimSpace(input), ":")
	if !ok {
		return "", strings.TrimSpace(input)
	}
	return strings.TrimSpace(machine), strings.TrimSpace(rest)
}

func parseTick(s string) (int, error) {
	tick, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("tick: %w", err)
	}
	if tick < 0 {
		return 0, fmt.Errorf("tick must be non-negative, got %d", tick)
	}
	return tick, nil
}

// forMachine returns the actions addressed to machine, ordered by tick. Actions
// sharing a tick keep their input order.
func forMachine(actions []Action, machine string) []Action {
	var out []Action
	for _, a := range actions {
		if a.Machine == "" || strings.EqualFold(a.Machine, machine) {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b Action) int { return a.Tick - b.Tick })
	return out
}
