package registry

import "errors"

var (
	// ErrValidation means the caller has to correct its input; retrying is pointless
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyInProgress means an identical operation is still in flight for this actor
	ErrAlreadyInProgress = errors.New("already in progress")

	// ErrAlreadyVoted means the voter is already recorded on the poll
	ErrAlreadyVoted = errors.New("already voted on this poll")

	// ErrOwnPoll means a guest tried to vote on the poll about themselves
	ErrOwnPoll = errors.New("cannot vote on your own poll")

	// ErrLastEvent means the only remaining event cannot be deleted
	ErrLastEvent = errors.New("cannot delete the last event")

	// ErrNotFound means the event, guest or poll is unknown (possibly not yet in the snapshot)
	ErrNotFound = errors.New("not found")

	// ErrStore wraps any document store failure
	ErrStore = errors.New("store error")
)
