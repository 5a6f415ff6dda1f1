// File: wshandshake/router.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Mount wires an Upgrader and its Registry onto a chi.Router, the mounting
// style shown in the pack's vango-go-vango chi_test.go (here a plain r.Get
// for both the upgrade path and the JSON debug endpoint).

package wshandshake

import (
	"github.com/go-chi/chi/v5"
)

// Mount registers upgrader's handshake handler at wsPath and, when
// upgrader.Registry is non-nil, a JSON connection dump at /debug/conns.
func Mount(r chi.Router, wsPath string, upgrader *Upgrader) {
	r.Get(wsPath, upgrader.Handler().ServeHTTP)
	if upgrader.Registry != nil {
		r.Get("/debug/conns", upgrader.Registry.ServeHTTP)
	}
}
