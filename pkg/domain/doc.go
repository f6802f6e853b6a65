/*
Package domain contains the core data model of the chatflow engine.

It defines the immutable workflow definitions (states, transitions), the live
per-user workflow context, the intent and entity model used by the classifier,
and the result shapes exchanged with pluggable handlers. The types here carry
no behavior beyond construction and simple queries; the state machine logic
lives in internal/runtime.
*/
package domain
