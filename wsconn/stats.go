// File: wsconn/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// StatsJSON serializes a connection's traffic snapshot using sonnet, a
// drop-in faster encoding/json replacement (see
// github.com/sugawarayuuta/sonnet, pulled in from the codewanderer42820
// example), for the /debug/conns endpoint wshandshake exposes.

package wsconn

import "github.com/sugawarayuuta/sonnet"

// StatsJSON returns the connection's current Stats snapshot encoded as
// compact JSON.
func (c *Conn) StatsJSON() ([]byte, error) {
	return sonnet.Marshal(c.Snapshot())
}
