// Package protocol implements the Lightning line protocol spoken by RF Code
// beacon and reader hardware over a serial link.
//
// This package provides functions to build command frames and to correlate
// the response lines of one in-flight command into a result or an error.
// It performs no I/O; see package session for the queue that drives it.
//
// # Protocol Overview
//
// The protocol is half-duplex and line based:
//
//	Command:  TOKEN[,ARG,ARG,...]<CR>
//	Response: =TOKEN[,FIELD,FIELD,...]<CR><LF>   (zero or more times)
//	          OK<CR><LF>                          (success, terminal)
//	          E,<code><CR><LF>                    (failure, terminal)
//
// Responses carry no sequence number; they are correlated positionally to
// whichever command is outstanding, so at most one command may be in flight.
//
// # Command Builders
//
// Use BuildFrame to create a command frame:
//
//	frame := protocol.BuildFrame(protocol.CmdLogin, "secret")
//	// "LOGIN,secret\r"
//
// # Correlating Responses
//
// A Correlator consumes the lines received for one command:
//
//	c := protocol.NewCorrelator(cmd, errors)
//	for line := range lines {
//	    done, err := c.Feed(line)
//	    if done {
//	        return c.Result(), err
//	    }
//	}
//
// The shape of the result depends on the command Mode:
//   - ModeSingle:   the fields of the last =TOKEN line (nil if none arrived)
//   - ModeMultiple: the fields of every =TOKEN line, in order
//   - ModeRaw:      every line before OK, verbatim
//
// # Error Handling
//
// An E,<code> line yields a *ProtocolError carrying the numeric code, the
// catalog message and whatever was accumulated before the error:
//
//	var perr *protocol.ProtocolError
//	if errors.As(err, &perr) {
//	    fmt.Println(perr.Code, perr.Message) // 6 Access denied
//	}
//
// A late answer to a command that already timed out arrives while the next
// command is outstanding. Lines that do not match the outstanding token are
// ignored, but an OK or E,<code> from the earlier command is indistinguishable
// from the current one's; the protocol has no sequencing to prevent it.
package protocol
