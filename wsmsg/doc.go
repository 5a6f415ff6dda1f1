// Package wsmsg implements the WebSocket message aggregator (C5): it joins
// fragment chains (an initial TEXT/BINARY frame plus zero or more
// CONTINUATION frames) into whole messages, validates TEXT payloads as
// UTF-8 incrementally across fragment boundaries, and passes control frames
// through untouched.
// Author: momentics <momentics@gmail.com>
package wsmsg
