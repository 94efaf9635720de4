package clip

// ClipBuilderOption is a functional option for configuring a Clip during construction.
type ClipBuilderOption func(*Clip)

// WithLoop sets whether playback restarts in place once the reference track is exhausted.
//
// Parameters:
//   - loop: true for a looping clip
//
// Returns:
//   - ClipBuilderOption: a function that applies the loop option to a clip
func WithLoop(loop bool) ClipBuilderOption {
	return func(c *Clip) {
		c.loop = loop
	}
}

// WithEvents appends events on top of those supplied by the clip definition.
// Animation-set manifests use this to attach gameplay events to shared clip files.
//
// Parameters:
//   - events: the additional events
//
// Returns:
//   - ClipBuilderOption: a function that applies the events option to a clip
func WithEvents(events ...RawEvent) ClipBuilderOption {
	return func(c *Clip) {
		for _, ev := range events {
			c.events = append(c.events, Event{InvokeTime: ev.InvokeTime, Name: ev.Name})
		}
	}
}
