/*
Package constellation is the single actor that owns every tab.

One goroutine (Run) drains the Mailbox and handles each Message to completion
before taking the next, so the browsing-context tree, the pipeline index and
all history state are mutated without locks. Everything outside the actor
talks to it through a Proxy, which degrades to a no-op once the actor is gone.

Navigation is asynchronous. LoadURL advances the browsing context's generation
and creates a pending pipeline; the content thread later answers with
LoadComplete tagged with that generation. A response carrying an older
generation is dropped, which is the only form of cancellation.

Committed navigations either push a new history entry (Navigate) or replace the
current one (ReplacePipeline). Pipelines that leave the current slot are kept
alive by a RetentionPolicy; when the policy evicts one, every history entry
that showed it is re-pointed to no document and a later traversal reloads it.
*/
package constellation
