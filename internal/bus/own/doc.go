// Package own implements the OpenWebNet bus protocol layer: the frame
// codec, the subsystem probe table, the TCP gateway transport, and the
// passive traffic recorder.
//
// Frames travel as ASCII strings terminated by "##". Three shapes are
// recognised besides the ACK/NACK pair:
//
//	*WHO*WHAT*WHERE##        command (state change or report)
//	*#WHO*WHERE##            status request (the probe form)
//	*#WHO*WHERE*DIM*VAL...## dimension report
//
// GatewayClient owns a connection to one gateway's command server and
// exposes inbound traffic as a channel of raw lines. Higher layers
// (discovery sessions) decode lines with DecodeFrame and decide what to
// do with them; this package never interprets device semantics.
package own
