// Package futurize runs long work off a caller-driven loop (a UI frame, a
// render tick) and lets that loop poll it without ever blocking.
//
// A Controller is built by Task with a kind tag and a Payload. Nothing runs
// until TryDo dispatches the payload on its worker. From then on the loop
// calls TryGet or TryResolve once per cycle: intermediate values reported
// through TaskHandle.Report come back as KindCurrent, and the terminal value
// (KindCompleted, KindError or KindCanceled) comes back from exactly one
// poll, after which the controller is done and should be dropped.
//
// Cancellation is cooperative. Cancel raises a flag and cancels
// TaskHandle.Context; a payload that checks IsCanceled or passes the context
// to its blocking calls ends as KindCanceled, a payload that ignores both
// runs to its natural end.
//
// Panics in a payload are recovered into a KindError value holding a
// *PanicError, so a controller always reaches a terminal value once its
// worker has run.
package futurize
