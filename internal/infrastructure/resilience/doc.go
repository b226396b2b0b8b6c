/*
Package resilience guards calls into collaborators that can fail repeatedly.

The constellation spawns content threads through a Spawner. When spawning keeps
failing (launcher panics, payload rejected, the spawner was closed) a Breaker
stops further attempts for a cool-down period so navigations fail fast into an
error document instead of retrying a broken collaborator on every load.

# Usage

	breaker := resilience.New("spawn", resilience.Settings{
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	err := breaker.Do(func() error {
		return spawner.Spawn(ctx, payload)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           v
	                                         Open
*/
package resilience
