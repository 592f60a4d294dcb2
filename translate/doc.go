// Package translate turns a backend's raw event stream into canonical
// AG-UI events.
//
// A [Translator] runs an ordered list of [Step] values against each raw
// event. Every step sees the same per-chunk [Context], which tracks the
// open text stream, active tool calls and predictive-state bookkeeping.
// Outputs are concatenated in step order.
//
// Steps are written against one backend's raw event shape; the adk package
// provides the set for ADK-style events. A Context is never shared between
// chunks or runs.
package translate
