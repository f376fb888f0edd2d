// Package board exposes the hardware-control operations of KATCP FPGA
// boards: digital and analog pin I/O, PWM output, programmable step
// attenuators, and frequency-range switching.
//
// Operations are expressed purely as sequences of blocking KATCP requests
// issued through a Requester (typically a *katcp.Client); the package keeps
// no state beyond the wiring description. Board wirings differ between
// installations: the [Variant] type captures one wiring as data, two
// built-in variants ([KATVariant], [StelliesVariant]) cover the known
// boards, and site-specific wirings can be loaded from YAML with
// [ParseVariant].
//
// Multi-request operations (attenuator programming, frequency-range
// switching) are not atomic with respect to concurrent callers on the same
// connection; callers that share a board serialize these themselves.
package board
