// Package storyboard sequences scroll-driven keyframes for [Ebitengine].
//
// A [Timeline] owns a [ScrollSource] and a stack of [Keyframe] values, each
// covering an inclusive range of scroll offsets. Every accepted offset is
// delivered to every keyframe; a keyframe activates when the offset enters
// its range and deactivates when it leaves, recording which way the offset
// was moving.
//
// # Quick start
//
// The simplest way to get started is a board file and [Run]:
//
//	board, err := storyboard.LoadBoard("board.yaml")
//	if err != nil { ... }
//	stage, err := board.Stage(storyboard.StageConfig{})
//	if err != nil { ... }
//	storyboard.Run(stage, storyboard.RunConfig{Title: "Tour"})
//
// For full control, build the timeline yourself and feed it offsets from
// anywhere:
//
//	tl := storyboard.NewTimeline(storyboard.TimelineConfig{Length: 3000})
//	kf, _ := tl.AddKeyframe(storyboard.KeyframeConfig{
//		Range: storyboard.ScrollRange{Start: 400, End: 900},
//	})
//	kf.RegisterEntryHandler(func(ctx context.Context, dir storyboard.ScrollDirection) error {
//		return playIntro(ctx, dir)
//	})
//	tl.Scroll(512)
//
// # Episodes
//
// Entering or leaving a range starts an episode that runs every registered
// handler of that phase concurrently. Each episode carries a token; a newer
// transition cancels the context of the running episode, and a cancelled
// episode never commits. A keyframe keeps rendering after it deactivates
// until its exit episode commits, so exit animations can finish.
//
// Handlers that return errors, panic or exceed their timeout do not block
// the episode: failures are aggregated into [TransitionEvent.Err] and the
// episode commits anyway.
//
// # Sampling
//
// A [ScrollSource] throttles raw offsets to at most one per
// [DefaultSampleThrottle] and keeps the latest held-back sample for
// [ScrollSource.Flush]. Keyframes additionally ignore changes smaller than
// their MinScrollDelta, except a return to offset 0.
//
// # Stage
//
// [Stage] implements [ebiten.Game]. It reads mouse, touch and wheel input,
// runs a [ScrollView] with fling deceleration and spring-back overscroll,
// ticks the [Animator] used by the fade and slide presets, and draws the
// [Layer] attached to each rendering keyframe. Scripts ([Script], [Replay])
// drive a stage headlessly at a fixed frame rate for tests and CI.
//
// ECS integration is available via the [Donburi] adapter in storyboard/ecs.
//
// [Ebitengine]: https://ebitengine.org
// [Donburi]: https://github.com/yohamta/donburi
package storyboard
