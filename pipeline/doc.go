// Package pipeline turns one user message into a reply.
//
// A turn runs six stages in a fixed order over a fresh State:
//   - classify the message as a fact, question, preference or feedback
//   - retrieve related knowledge for facts and questions
//   - check whether a fact is verifiable
//   - extract response preferences from preference messages
//   - persist validated facts and preferences to the knowledge store
//   - generate the reply, adapted to the preferences and context
//
// A stage that fails records its error on the state and the remaining stages
// still run, so the user always gets a reply. Persistence is the only stage
// that is skipped once an error has been recorded. Process recovers from
// panics and never returns a Go error.
package pipeline
