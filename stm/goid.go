package stm

import (
	"bytes"
	"runtime"
	"strconv"
)

// currentGoroutineID extracts the calling goroutine's id from the header
// line of its own stack trace ("goroutine 123 [running]: ..."). There is
// no supported API for this, and no library in the retrieval pack offers
// goroutine-local storage; this is the one place the runtime needs to
// know "is this goroutine already inside a transaction" without a *Tx
// being passed to it (Inconsistently's InAtomic precondition, spec §4.3),
// so it is accepted here as a narrow, documented stdlib-only exception --
// see DESIGN.md.
func currentGoroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	fields := bytes.Fields(buf)
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(string(fields[1]), 10, 64)
	return id
}
