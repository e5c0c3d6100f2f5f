// Package actor provides a mailbox-based actor runtime for building
// concurrent, message-driven services.
//
// Each actor owns a bounded mailbox drained by a single goroutine, so a
// given actor processes exactly one message at a time. That sequencing is
// the only synchronization its state needs: handlers never take locks.
//
// # Creating Actors
//
// Define handlers with typed registrations and start the actor:
//
//	worker := actor.TypedHandlers(
//	    actor.HandleRequest[ProcessNoteRequest, *NoteProcessedResult](handleNote),
//	    actor.HandleEvery(time.Minute, reportStats),
//	).ToActor(actor.Options{ID: "worker-0"})
//
// # Asking
//
// [Request] implements the ask pattern: it enqueues the message together
// with a one-shot reply channel and waits for the outcome. Failures are
// two-level and distinguishable:
//
//   - [*TransportError]: the mailbox was closed, the actor stopped, or the
//     caller's context expired before a reply arrived. Retry elsewhere.
//   - [*HandlerError]: the actor processed the message and its own logic
//     reported failure. Surface to the caller.
//
// [Publish] is the fire-and-forget variant.
//
// # Backpressure
//
// Mailboxes are bounded (Options.MailboxSize). Send blocks until the
// envelope is accepted, the caller's context is cancelled, or the actor
// stops; it never drops messages silently.
//
// # Lifecycle
//
// Actors run until Stop is called or their base context is cancelled.
// There is no supervision or restart: a handler panic is contained,
// reported through [Options.OnPanic], and turned into a handler error,
// and the loop keeps running. Pause/Resume/Step allow deterministic
// single-stepping in tests.
package actor
