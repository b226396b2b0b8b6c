/*
Package sandbox spawns content threads for new pipelines.

The constellation never hands live objects to a spawned pipeline. It serializes
an UnprivilegedContent payload (JSON via sonic, compressed with zstd) and passes
the bytes to a Spawner. Channels cannot be serialized, so the payload carries
endpoint tokens that the spawned side redeems from the shared Endpoints table:

	token := endpoints.Put(receiver)          // one-shot, redeemed by Take
	endpoints.Publish("constellation", proxy) // persistent, read by Lookup

ThreadSpawner runs each payload on its own goroutine inside this process and
tracks them so shutdown can wait for every content thread with a deadline.
*/
package sandbox
