/*
Package courier implements the message-exchange service of the
fabric: lock leasing, message lifecycle, debounced conversation
delivery, webhook ingestion, and the HTTP API agents use to claim
work.

# Architecture

	Webhook ─► signature check ─► mailbox inbound ─► debouncer ─► bus
	                                                                │
	Agent ──► claim/complete/fail ─► LockManager ─► locks.json      ▼
	                    │                                     event stream
	                    └─► MessageStateManager ─► archive /  (websocket)
	                                               .deadletter

# Lock Protocol

A message lease is claim → complete | fail. Claims expire; an expired
claim reverts to new lazily on the next read, so a crashed agent
never wedges a message. Failures increment a retry counter; a
retryable failure under MaxRetryAttempts re-opens the message, and
anything else promotes it to deadletter and moves the file under
.deadletter/<provider>/.

# Debouncing

Rapid-fire inbound messages are grouped per conversation
(session:thread key) and delivered as one batch once the sender
pauses for the idle window, or unconditionally after the max wait.
Each flushed batch publishes a mailbox.inbound_received event.

# HTTP Surface

The API binds to localhost:8644 under /api/v1/courier (gorilla/mux):
message status and lock transitions, DingTalk-style webhook intake
with HMAC signature verification, the project registry, a /health
report, Prometheus /metrics, and a websocket /events stream fed by
the bus bridge.

# Process Model

Runtime wires the components for in-process use; Controller manages
the detached daemon (pid file, log redirection, SIGTERM-then-SIGKILL
shutdown, health polling).
*/
package courier
