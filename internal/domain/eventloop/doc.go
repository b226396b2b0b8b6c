// Package eventloop manages the lifetime of the channel to one script actor.
//
// A Handle wraps the send side of a script actor's queue. Every pipeline that
// must execute in the same script context holds a clone of the same handle; the
// actor is told to exit exactly once, when the last clone is released.
//
// Handles are owned by the constellation goroutine. They are not safe for
// concurrent use and must never be handed to other goroutines; other components
// only see ids they hand back to the constellation.
//
// Example Usage:
//
//	ch := eventloop.NewChannel(256)
//	loop := eventloop.New(ch, logger)
//	defer loop.Release()
//
//	if err := loop.Send(eventloop.SetActivity{Pipeline: p, Active: false}); err != nil {
//	    logger.Debug("script actor gone", zap.Error(err))
//	}
package eventloop
