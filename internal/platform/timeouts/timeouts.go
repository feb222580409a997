// Package timeouts defines shared timeout constants for ledger commands.
// Centralizing the durations keeps them discoverable and stops drift
// between surfaces that bound the same kind of work.
package timeouts

import "time"

// MCPCall caps one store call made on behalf of an MCP client, covering
// tool invocations and resource reads alike.
const MCPCall = 5 * time.Second

// OTelShutdown limits how long a telemetry flush may block process exit.
const OTelShutdown = 5 * time.Second
