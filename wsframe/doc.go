// Package wsframe implements RFC 6455 frame encoding, decoding, and masking.
// Author: momentics <momentics@gmail.com>
//
// The decoder is a resumable state machine: it can be fed byte slices of any
// size, in any split, and will emit exactly the frames the wire would have
// produced had it all arrived at once. No allocation occurs on the header
// path; the payload buffer is the only allocation per frame (or is supplied
// by a caller-owned pool via the Parser.Allocator field).
package wsframe
