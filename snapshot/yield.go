package snapshot

import (
	"runtime"
	"time"
)

// yield is the async_print_delay hook point (§9 design note): with
// delayMS<=0 this is a no-op cooperative yield, never
// a sleep, and must never be relied upon for correctness. A positive
// delayMS (sim.asyncPrintDelayMs) instead paces publishing for a
// human-watched run, mirroring original_source's asyncio.sleep between
// progress prints; it is a presentation knob, not a timing dependency
// anything else in the framework may rely on.
func yield(delayMS int) {
	if delayMS <= 0 {
		runtime.Gosched()
		return
	}
	time.Sleep(time.Duration(delayMS) * time.Millisecond)
}
