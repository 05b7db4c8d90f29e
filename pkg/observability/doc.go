/*
Package observability provides Prometheus instrumentation and OpenTelemetry
tracing for the session store.

InstrumentCollection records per-operation counts, errors and latency against
the backing database, and Metrics carries protocol-level counters for fetch
outcomes, token-guarded releases and expired-record sweeps.

TraceCollection opens a client span per collection call using the global
tracer provider unless WithTracerProvider is given.
*/
package observability
