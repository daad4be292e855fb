// Package ecs provides ECS adapters for storyboard.
package ecs

import (
	"sync"

	"github.com/phanxgames/storyboard"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// TransitionEventType is the Donburi event type for keyframe transitions.
// Subscribe to this in your ECS systems to react to keyframes entering and
// exiting.
var TransitionEventType = events.NewEventType[storyboard.TransitionEvent]()

// KeyframeData mirrors the state of one keyframe on an entity.
type KeyframeData struct {
	Name     string
	Keyframe *storyboard.Keyframe
	State    storyboard.State
}

// KeyframeComponent holds the mirrored keyframe state.
var KeyframeComponent = donburi.NewComponentType[KeyframeData]()

// Sink bridges a Timeline into a Donburi world. Transition events arrive on
// arbitrary goroutines and are buffered until Flush, which must run on the
// goroutine that owns the world (typically inside a system's update).
type Sink struct {
	world donburi.World

	mu      sync.Mutex
	pending []storyboard.TransitionEvent

	entities map[*storyboard.Keyframe]donburi.Entity
}

// NewDonburiSink creates a sink publishing into world.
func NewDonburiSink(world donburi.World) *Sink {
	return &Sink{
		world:    world,
		entities: make(map[*storyboard.Keyframe]donburi.Entity),
	}
}

// Attach subscribes the sink to tl's transitions. Remove the returned
// handle to detach.
func (s *Sink) Attach(tl *storyboard.Timeline) storyboard.TransitionHandle {
	return tl.OnTransition(s.Push)
}

// Push buffers ev for the next Flush. Safe for concurrent use.
func (s *Sink) Push(ev storyboard.TransitionEvent) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
}

// Pending returns the number of buffered events.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush publishes buffered events to TransitionEventType, refreshes the
// mirrored keyframe entities and returns the number of events published.
// Events are queued in the world; call TransitionEventType.ProcessEvents to
// deliver them.
func (s *Sink) Flush() int {
	s.mu.Lock()
	evs := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, ev := range evs {
		TransitionEventType.Publish(s.world, ev)
		if ev.Keyframe != nil {
			s.mirror(ev.Keyframe)
		}
	}
	for kf, e := range s.entities {
		if kf.Closed() {
			if s.world.Valid(e) {
				s.world.Remove(e)
			}
			delete(s.entities, kf)
			continue
		}
		s.mirror(kf)
	}
	return len(evs)
}

// Entity returns the entity mirroring kf, if one has been created.
func (s *Sink) Entity(kf *storyboard.Keyframe) (donburi.Entity, bool) {
	e, ok := s.entities[kf]
	return e, ok
}

func (s *Sink) mirror(kf *storyboard.Keyframe) {
	if kf.Closed() {
		return
	}
	e, ok := s.entities[kf]
	if !ok || !s.world.Valid(e) {
		e = s.world.Create(KeyframeComponent)
		s.entities[kf] = e
	}
	KeyframeComponent.SetValue(s.world.Entry(e), KeyframeData{
		Name:     kf.Name(),
		Keyframe: kf,
		State:    kf.State(),
	})
}
