// Package agentpool implements the Agent Pool (spec §4.5): a bounded map of
// live agent handles, a concurrency gate agent spawns must acquire, and a
// best-effort outbound event channel the orchestrator's event loop drains.
package agentpool
