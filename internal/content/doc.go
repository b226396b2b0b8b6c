// Package content runs script actors: the threads that host documents on
// behalf of the constellation.
//
// A content thread is started by a sandbox.Spawner with a serialized
// UnprivilegedContent payload. It redeems the payload's endpoints for its
// event loop receiver, the constellation proxy and the resource loader, then
// loads its first document and drains the event loop until told to exit.
//
// Loading a document fetches it, parses its title, nested frames and inline
// scripts, and reports back in order: LoadComplete, one ScriptLoadedIFrame per
// frame, then runs the scripts. Scripts execute in a goja runtime with no
// module system; location and history bindings turn into LoadURL and Navigate
// messages.
//
// Example Usage:
//
//	launcher := content.NewLauncher(endpoints, monitor, content.Config{HangTimeout: 3 * time.Second}, logger)
//	spawner := sandbox.NewThreadSpawner(launcher.Launch, logger)
package content
