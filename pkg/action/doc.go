/*
Package action defines Fabric's executable action contract and the
built-in action library.

Every action implements a two-phase contract: CanExecute guards,
Execute performs. Callers never invoke either directly; Run enforces
the contract so that guards, errors, and panics all land as
ActionResults instead of propagating.

# Execution Contract

	Run(ctx, action, event)
	  │
	  ├─ CanExecute false ──► skipped ("Conditions not met")
	  ├─ CanExecute error ──► failed
	  ├─ Execute error ─────► failed
	  ├─ Execute panic ─────► failed ("panic: ...")
	  └─ Execute result ────► as returned, timestamps backfilled

# Built-in Actions

  - SpawnAgent: submits an agent session to the scheduler, gated on
    scheduler capacity
  - GitCommit / GitPush: stage, commit, and push workspace changes
  - RunTest: runs an external test command and parses its summary
  - SendNotification: renders templates and delivers through a
    registered channel (webhook, file, console)
  - ConditionalAction: wraps a body behind a predicate
  - ActionChain: sequential composition with shared context and
    short-circuit on failure

# Chains

A chain copies the triggering event, threads a shared map through the
payload under "chain_context", and records each successful member's
output under "<name>_output". The first failed member stops the chain;
the remaining members are recorded as skipped.

# Notification Channels

Channels are registered by name in a process-wide registry and looked
up by SendNotification at dispatch time:

	action.RegisterChannel(action.NewWebhookChannel("ops", url))
	a := action.NewSendNotification("ops", "Issue {issue_id}", "moved to {to_stage}")
*/
package action
