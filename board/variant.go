package board

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// PinWrite describes a single digital write: drive Pin to State.
type PinWrite struct {
	Pin   int `yaml:"pin"`
	State int `yaml:"state"`
}

// Variant is a named pin-map configuration describing one board wiring.
//
// A Variant says nothing about how to talk to the board; it only names the
// pins that the attenuator and frequency-switch operations drive. Use one
// of the built-in variants or load a site-specific one with ParseVariant.
type Variant struct {
	// Name identifies the wiring.
	Name string `yaml:"name"`

	// SwitchPins are the frequency-switch control pins in board order.
	// Every one is driven high before a range selection is applied.
	SwitchPins []int `yaml:"switch_pins"`

	// RangeWrites maps each selectable frequency range to the pin writes
	// that select it once all switch pins are raised.
	RangeWrites map[int][]PinWrite `yaml:"range_writes"`

	// AttenLatchPins are the attenuator latch-enable pins. Attenuator index
	// i addresses AttenLatchPins[i-1]; index 0 broadcasts to all of them.
	AttenLatchPins []int `yaml:"atten_latch_pins"`

	// AttenClockPin is the serial clock pin for attenuator programming.
	AttenClockPin int `yaml:"atten_clock_pin"`

	// AttenDataPin is the serial data pin for attenuator programming.
	AttenDataPin int `yaml:"atten_data_pin"`
}

// KATVariant returns the wiring of the KAT filter boards: two four-pin
// switch banks and three daisy-chained attenuators with individual latch
// pins.
func KATVariant() Variant {
	return Variant{
		Name:       "kat",
		SwitchPins: []int{13, 12, 19, 18, 17, 16, 15, 14},
		RangeWrites: map[int][]PinWrite{
			1: {{Pin: 18, State: 0}, {Pin: 17, State: 0}},
			2: {{Pin: 12, State: 0}, {Pin: 15, State: 0}},
			3: {{Pin: 19, State: 0}, {Pin: 16, State: 0}},
			4: {{Pin: 13, State: 0}, {Pin: 14, State: 0}},
		},
		AttenLatchPins: []int{5, 6, 7},
		AttenClockPin:  3,
		AttenDataPin:   4,
	}
}

// StelliesVariant returns the wiring of the Stellenbosch boards: a single
// attenuator and a third switch pin that participates in range selection.
func StelliesVariant() Variant {
	return Variant{
		Name:       "stellies",
		SwitchPins: []int{3, 4, 5, 6, 7, 8, 9, 10},
		RangeWrites: map[int][]PinWrite{
			1: {{Pin: 5, State: 0}, {Pin: 8, State: 0}, {Pin: 11, State: 1}},
			2: {{Pin: 4, State: 0}, {Pin: 10, State: 0}, {Pin: 11, State: 0}},
			3: {{Pin: 3, State: 0}, {Pin: 9, State: 0}, {Pin: 11, State: 0}},
			4: {{Pin: 3, State: 0}, {Pin: 10, State: 0}},
		},
		AttenLatchPins: []int{16},
		AttenClockPin:  15,
		AttenDataPin:   17,
	}
}

// ParseVariant parses a Variant from YAML and validates it.
func ParseVariant(data []byte) (Variant, error) {
	var v Variant
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Variant{}, fmt.Errorf("board: parse variant: %w", err)
	}

	if err := v.Validate(); err != nil {
		return Variant{}, err
	}

	return v, nil
}

// Encode renders the variant to YAML, for persisting site-specific wirings.
func (v Variant) Encode() ([]byte, error) {
	return yaml.Marshal(v)
}

// Validate checks that the variant describes a usable wiring.
func (v Variant) Validate() error {
	if v.Name == "" {
		return errors.New("board: variant has no name")
	}
	if len(v.SwitchPins) == 0 {
		return fmt.Errorf("board: variant %s has no switch pins", v.Name)
	}
	if len(v.RangeWrites) == 0 {
		return fmt.Errorf("board: variant %s has no range writes", v.Name)
	}
	if len(v.AttenLatchPins) == 0 {
		return fmt.Errorf("board: variant %s has no attenuator latch pins", v.Name)
	}
	if v.AttenClockPin == v.AttenDataPin {
		return fmt.Errorf("board: variant %s uses pin %d for both attenuator clock and data",
			v.Name, v.AttenClockPin)
	}

	return nil
}
