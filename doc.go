/*
Package chatflow routes free-form chat messages into structured, multi-turn
guided interactions.

Three subsystems cooperate: an intent classifier decides what the user wants,
a validation engine decides whether collected input is acceptable, and a
workflow engine decides what state a multi-step interaction is in and what
happens next. The chat transport and the orchestrator that glue them to a
messaging channel live outside this module; chatflow only exposes in-process
contracts (ContextStore, handlers, validators, extractors).

A minimal session:

	store := memory.NewStore()
	bot, err := chatflow.New(store)
	if err != nil { ... }

	bot.Handlers().Register("confirm_order", ports.HandlerFunc(confirmOrder))
	if err := bot.RegisterWorkflow(purchaseDef); err != nil { ... }

	// For each inbound message:
	res, cls, err := bot.HandleMessage(ctx, userID, text)

HandleMessage classifies the message when the user has no active workflow and
starts the matching one; otherwise it feeds the message to the active
workflow as one step.
*/
package chatflow
