package models

import "errors"

// ErrChannelNotImplemented is returned for channels that cannot be executed yet.
var ErrChannelNotImplemented = errors.New("channel not implemented")

// Channel is the delivery medium of a sequence step.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelLinkedIn Channel = "linkedin"
	ChannelPhone    Channel = "phone"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelLinkedIn, ChannelPhone:
		return true
	}
	return false
}

// Executable returns nil when the executor can act on the channel.
func (c Channel) Executable() error {
	switch c {
	case ChannelEmail:
		return nil
	case ChannelLinkedIn, ChannelPhone:
		return ErrChannelNotImplemented
	}
	return errors.New("unknown channel: " + string(c))
}
