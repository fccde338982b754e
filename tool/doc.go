// Package tool maps tool names to local executors.
//
// When the run engine sees a TOOL_CALL_END event it dispatches the
// accumulated call to the registry. Host applications register executors to
// handle the tools their backend emits; a call to an unregistered name is
// reported as not-found rather than an error, since backends may emit tools
// the host chooses not to handle locally.
//
// Tools registered fire-and-forget are started without awaiting: Execute
// returns immediately with no result, and failures inside the executor are
// the executor's own concern. Result-returning tools run synchronously and
// their errors propagate to the Execute caller.
package tool
