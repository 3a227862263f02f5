// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

// ScenarioState is the state of an interrupt scenario.
type ScenarioState int

const (
	// Pins configured and the counting callback registered.
	StateConfigured ScenarioState = iota

	// Trigger enabled and the input at its prime level.
	StateArmed

	// Qualifying transitions driven.
	StateTriggered

	// Invocation count checked against expectation.
	StateVerified

	// Counters reset, non-qualifying transitions checked.
	StateReset
)

func (s ScenarioState) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateArmed:
		return "armed"
	case StateTriggered:
		return "triggered"
	case StateVerified:
		return "verified"
	case StateReset:
		return "reset"
	default:
		return "unknown"
	}
}

// step is a level driven onto the output of a loopback pair, and whether
// that transition should trigger the interrupt.
type step struct {
	level      int
	qualifying bool
}

// InterruptScenario describes an interrupt trigger test.
type InterruptScenario struct {
	// The name of the scenario.
	Name string

	// The trigger under test.
	Trigger Trigger

	// The flags used to configure the input before arming.
	InputFlags Flags

	// The level the output is driven to before the counter is reset.
	Prime int

	// The transitions driven, per repeat, in the triggered state.
	cycle []step

	// The transitions driven in the reset state, none of which qualify.
	quiet []int
}

// expected returns the number of qualifying transitions over the given
// number of repeats.
func (s InterruptScenario) expected(repeat int) int {
	n := 0
	for _, st := range s.cycle {
		if st.qualifying {
			n++
		}
	}
	return n * repeat
}

// InterruptScenarios returns the standard interrupt scenarios.
func InterruptScenarios() []InterruptScenario {
	return []InterruptScenario{
		{
			Name:       "edge-rising",
			Trigger:    TriggerEdgeRising,
			InputFlags: Input,
			Prime:      0,
			cycle:      []step{{0, false}, {1, true}},
			quiet:      []int{0, 0},
		},
		{
			Name:       "edge-falling",
			Trigger:    TriggerEdgeFalling,
			InputFlags: Input,
			Prime:      1,
			cycle:      []step{{1, false}, {0, true}},
			quiet:      []int{1, 1},
		},
		{
			Name:       "edge-both",
			Trigger:    TriggerEdgeBoth,
			InputFlags: Input,
			Prime:      0,
			cycle:      []step{{1, true}, {0, true}},
			quiet:      []int{0, 0},
		},
		{
			Name:       "level-high",
			Trigger:    TriggerLevelHigh,
			InputFlags: InputPullDown,
			Prime:      0,
			cycle:      []step{{1, true}, {0, false}},
			quiet:      []int{0, 0},
		},
		{
			Name:       "level-low",
			Trigger:    TriggerLevelLow,
			InputFlags: InputPullUp,
			Prime:      1,
			cycle:      []step{{0, true}, {1, false}},
			quiet:      []int{1, 1},
		},
	}
}
