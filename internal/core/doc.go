// Package core provides the NDJSON grouped import engine and the service
// that exposes it.
//
// # Engine
//
// An [Engine] run is two sequential passes over one stream:
//
//  1. [LineReader] splits the stream into numbered lines. [DecodeLine]
//     classifies each as a header (skipped), a payload record (folded into
//     a [GroupAccumulator] by its examplePayloadId), or a [LineError]
//     (counted, logged, skipped).
//  2. Each group, in the order its key first appeared, is handed to the
//     [GroupProcessor]. A failing group is recorded and the rest continue.
//
// The result is a [RunSummary]. Only a [StreamReadError] or cancellation of
// the context ends a run early.
//
// Phase 2 can be parallelised with [WithWorkers]; the summary still lists
// groups in first-seen order.
//
// # Service
//
// [Service] wraps the engine with admission control ([ImportLimiter]), run
// ids, timeouts, compressed bodies ([DecodeContent]) and a [HistoryStore]
// ([MemoryHistory] or [PostgresHistory]).
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError];
// see error_messages.go for the code reference.
package core
