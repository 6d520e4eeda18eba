package events

import "strconv"

// UnknownChannelError is returned when an emitter uses a channel its
// declaration does not list.
type UnknownChannelError struct{ Channel string }

// Error implements the error interface.
func (e UnknownChannelError) Error() string {
	// Example: events: channel "t:e" not declared by emitter
	return "events: channel " + strconv.Quote(e.Channel) + " not declared by emitter"
}
