// File: wshandshake/marshal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wshandshake

import (
	"github.com/momentics/wscore/wsconn"
	"github.com/sugawarayuuta/sonnet"
)

// marshalStats mirrors wsconn.Conn.StatsJSON's choice of encoder so the
// aggregate /debug/conns view and the per-connection encoding stay
// consistent.
func marshalStats(snaps []wsconn.Stats) ([]byte, error) {
	return sonnet.Marshal(snaps)
}
