// Package ecs provides ECS adapters for storyboard's transition events.
//
// The primary adapter is [NewDonburiSink], which bridges keyframe
// transitions (enter, entered, exit, exited, cancelled) into a [Donburi]
// world as typed events, and mirrors every keyframe that has transitioned
// onto an entity carrying [KeyframeComponent].
//
// Usage:
//
//	sink := ecs.NewDonburiSink(world)
//	sink.Attach(timeline)
//
//	// each frame, on the world's goroutine
//	sink.Flush()
//	ecs.TransitionEventType.ProcessEvents(world)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
