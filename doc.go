// Package bridge adapts agent backends to the AG-UI event protocol.
//
// A client sends a [RunInput] carrying the whole conversation history for a
// thread. The bridge works out which messages it has not yet acted on,
// groups them into chunks, runs each chunk against an agent backend, and
// streams the backend's output back as canonical AG-UI events framed as
// SSE or NDJSON.
//
// # Packages
//
//   - [github.com/spetersoncode/bridge/event]: canonical event constructors,
//     JSON Patch helpers and a sequence validator
//   - [github.com/spetersoncode/bridge/translate]: the per-chunk translation
//     context and the step pipeline
//   - [github.com/spetersoncode/bridge/adk]: steps and runners for
//     ADK-style raw events built on google.golang.org/genai content
//   - [github.com/spetersoncode/bridge/session]: per-thread session state
//     over a pluggable [github.com/spetersoncode/bridge/store] adapter
//   - [github.com/spetersoncode/bridge/chunk]: splits unseen history into
//     executable chunks
//   - [github.com/spetersoncode/bridge/runner]: the run orchestrator
//   - [github.com/spetersoncode/bridge/wire]: SSE and NDJSON framing
//
// # Basic Usage
//
//	sessions := session.New(store.NewMemoryAdapter())
//	orch := runner.New(sessions, adk.NewBackend(adk.NewEchoRunner()))
//
//	prepared, err := input.Prepare()
//	if err != nil {
//	    return err
//	}
//	enc := wire.NewEncoder(w, wire.Negotiate(r.Header.Get("Accept")))
//	for ev := range orch.Run(ctx, prepared) {
//	    if err := enc.Encode(ev); err != nil {
//	        return err
//	    }
//	}
//
// # Errors
//
// Failures are reported as [*Error] values with a [Kind]. Inside a run,
// the orchestrator turns any error into a single RUN_ERROR event whose code
// is the error's Kind.
package bridge
