// Package katcptest provides an in-process simulated KATCP device for
// testing code built on the katcp package, without a serial port or network
// connection.
//
// [Device] implements [katcp.Transport]. It emulates a small FPGA board:
// virtual digital, analog, and PWM pin state, per-verb request handlers
// (watchdog, setd, getd, seta and geta are built in), and a single dispatch
// goroutine that serializes request handling the way a real device's
// firmware loop does.
//
// Tests script failure modes with [Device.SetReplyDelay] and
// [Device.SetDropReplies], inject unsolicited messages with
// [Device.PushReply] and [Device.PushInform], and assert on the exact
// request traffic with [Device.Requests].
package katcptest
