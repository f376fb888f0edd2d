package board

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fpgactl/go-katcp/katcp"
)

// Request verbs understood by the board firmware.
const (
	setDigitalName = "setd"
	getDigitalName = "getd"
	setAnalogName  = "seta"
	getAnalogName  = "geta"
)

// ErrInvalidArgument indicates that a pin, value, or range argument is out
// of bounds for the operation. It is detected locally, before any request
// is sent.
var ErrInvalidArgument = errors.New("board: invalid argument")

// pwmPins are the pins capable of PWM output.
var pwmPins = map[int]bool{3: true, 5: true, 6: true, 9: true, 10: true, 11: true}

// Requester issues blocking KATCP requests. *katcp.Client implements it.
type Requester interface {
	Request(ctx context.Context, name string, args ...string) (*katcp.Message, []*katcp.Message, error)
}

// Board exposes the hardware-control operations of a KATCP FPGA board,
// parameterized by a pin-map Variant.
//
// Operations validate their arguments locally, then issue a deterministic
// sequence of blocking requests through the Requester. The Board itself
// holds no mutable state.
type Board struct {
	rq      Requester
	variant Variant
}

// New creates a Board that issues requests through rq using the given
// wiring variant.
func New(rq Requester, variant Variant) (*Board, error) {
	if rq == nil {
		return nil, errors.New("board: requester is nil")
	}
	if err := variant.Validate(); err != nil {
		return nil, err
	}

	return &Board{rq: rq, variant: variant}, nil
}

// Variant returns the wiring variant the board operates with.
func (b *Board) Variant() Variant { return b.variant }

// SetDigital drives a digital pin to the given state, 0 or 1.
func (b *Board) SetDigital(ctx context.Context, pin, state int) error {
	if state != 0 && state != 1 {
		return fmt.Errorf("%w: digital state %d, should be 0 or 1", ErrInvalidArgument, state)
	}

	_, _, err := b.rq.Request(ctx, setDigitalName, strconv.Itoa(pin), strconv.Itoa(state))

	return err
}

// GetDigital reads the state of a digital pin.
func (b *Board) GetDigital(ctx context.Context, pin int) (int, error) {
	reply, _, err := b.rq.Request(ctx, getDigitalName, strconv.Itoa(pin))
	if err != nil {
		return 0, err
	}

	return parseValueReply(reply)
}

// GetAnalog reads an analog pin, averaged over the given smoothing window.
//
// Valid analog pins are 0 through 7; the smoothing window must be between
// 1 and 64 samples.
func (b *Board) GetAnalog(ctx context.Context, pin, smoothing int) (int, error) {
	if pin < 0 || pin > 7 {
		return 0, fmt.Errorf("%w: analog pin %d out of range [0, 7]", ErrInvalidArgument, pin)
	}
	if smoothing < 1 || smoothing > 64 {
		return 0, fmt.Errorf("%w: smoothing %d out of range [1, 64]", ErrInvalidArgument, smoothing)
	}

	reply, _, err := b.rq.Request(ctx, getAnalogName, strconv.Itoa(pin), strconv.Itoa(smoothing))
	if err != nil {
		return 0, err
	}

	return parseValueReply(reply)
}

// SetPWM writes a PWM duty value to a PWM-capable pin.
//
// PWM output is available on pins 3, 5, 6, 9, 10 and 11; the duty value
// must be between 0 and 255.
func (b *Board) SetPWM(ctx context.Context, pin, value int) error {
	if !pwmPins[pin] {
		return fmt.Errorf("%w: pin %d has no PWM output", ErrInvalidArgument, pin)
	}
	if value < 0 || value > 255 {
		return fmt.Errorf("%w: PWM value %d out of range [0, 255]", ErrInvalidArgument, value)
	}

	_, _, err := b.rq.Request(ctx, setAnalogName, strconv.Itoa(pin), strconv.Itoa(value))

	return err
}

// SetAttenuation programs a step attenuator to the given attenuation in dB.
//
// db must be between 0 and 31. index selects the attenuator: 1 through the
// number of latch pins of the variant address a single attenuator, and
// index 0 broadcasts the value to all of them.
//
// The attenuator counts half-dB steps, so db*2 is shifted out as 6 bits,
// most significant bit first, over the variant's clock and data pins, and
// then latched.
func (b *Board) SetAttenuation(ctx context.Context, index, db int) error {
	if db < 0 || db > 31 {
		return fmt.Errorf("%w: attenuation %d dB out of range [0, 31]", ErrInvalidArgument, db)
	}
	if index < 0 || index > len(b.variant.AttenLatchPins) {
		return fmt.Errorf("%w: attenuator index %d out of range [0, %d]",
			ErrInvalidArgument, index, len(b.variant.AttenLatchPins))
	}

	// Hold every latch and the clock low while shifting.
	for _, pin := range b.variant.AttenLatchPins {
		if err := b.SetDigital(ctx, pin, 0); err != nil {
			return err
		}
	}
	if err := b.SetDigital(ctx, b.variant.AttenClockPin, 0); err != nil {
		return err
	}

	val := db * 2
	for bit := 5; bit >= 0; bit-- {
		if err := b.SetDigital(ctx, b.variant.AttenDataPin, (val>>bit)&1); err != nil {
			return err
		}
		if err := b.SetDigital(ctx, b.variant.AttenClockPin, 1); err != nil {
			return err
		}
		if err := b.SetDigital(ctx, b.variant.AttenClockPin, 0); err != nil {
			return err
		}
	}

	if index == 0 {
		for _, pin := range b.variant.AttenLatchPins {
			if err := b.SetDigital(ctx, pin, 1); err != nil {
				return err
			}
		}

		return nil
	}

	return b.SetDigital(ctx, b.variant.AttenLatchPins[index-1], 1)
}

// SetFrequencyRange selects one of the variant's frequency ranges.
//
// All switch pins are driven high in variant order, then the pin writes for
// the selected range are applied.
func (b *Board) SetFrequencyRange(ctx context.Context, rangeNum int) error {
	writes, ok := b.variant.RangeWrites[rangeNum]
	if !ok {
		return fmt.Errorf("%w: frequency range %d is not defined for variant %s",
			ErrInvalidArgument, rangeNum, b.variant.Name)
	}

	for _, pin := range b.variant.SwitchPins {
		if err := b.SetDigital(ctx, pin, 1); err != nil {
			return err
		}
	}

	for _, w := range writes {
		if err := b.SetDigital(ctx, w.Pin, w.State); err != nil {
			return err
		}
	}

	return nil
}

// parseValueReply extracts the integer payload from a read reply, whose
// arguments are the status code followed by the value.
func parseValueReply(reply *katcp.Message) (int, error) {
	args := reply.Arguments()
	if len(args) < 2 {
		return 0, fmt.Errorf("board: reply %s carries no value", reply.String())
	}

	val, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("board: reply %s carries a non-numeric value: %w", reply.String(), err)
	}

	return val, nil
}
