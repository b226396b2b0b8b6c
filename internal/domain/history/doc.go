/*
Package history implements session history for browsing contexts.

# Overview

A BrowsingContext is a frame slot. It holds exactly one current entry and two
stacks of remembered entries (prev for back, next for forward). Entries are
reached through *EntryHandle values; a handle may be shared by several owners
(a context's stacks, a joint-history record, a test).

# Replace vs Update

Two operations change the pipeline of the current entry and they differ in how
they treat handles that alias it:

  - ReplacePipeline allocates a new handle for current. Aliases of the old
    handle keep reporting the old pipeline.
  - UpdatePipeline mutates the pipeline through the existing handle. Every
    alias observes the new pipeline.

Replace is used by navigations that must not create a history entry. Update is
used when the entry identity must survive a pipeline swap (crash recovery,
reloading an entry whose pipeline was discarded).

# Joint History

A JointHistory records, per tab, which browsing context each history push
happened in, so back/forward can be applied across nested contexts in order.

# Generations

Every context carries a navigation generation. Asynchronous responses carry
the generation they were issued for and are discarded once it is stale.
*/
package history
