// Package service runs matching rounds. It is the only place that
// coordinates the resting store, the pool snapshot source, the round
// journal, the outbox and the auction handoff; transports such as Kafka
// and gRPC call into it and never touch those components directly.
package service
