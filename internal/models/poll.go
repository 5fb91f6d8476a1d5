package models

import (
	"fmt"
	"slices"
	"time"
)

// PollOptions is the fixed answer set of every poll
var PollOptions = []string{"Yes", "No", "Maybe", "Let me think about it"}

// Poll asks the other guests of an event about one guest (the subject)
type Poll struct {
	ID          string         `json:"id"`
	GuestID     string         `json:"guestId"`
	EventID     string         `json:"eventId"`
	GuestName   string         `json:"guestName"`
	Question    string         `json:"question"`
	Options     []string       `json:"options"`
	Votes       map[string]int `json:"votes"`
	VotedGuests []string       `json:"votedGuests"`
	MaxVotes    int            `json:"maxVotes"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// NewPoll builds the poll for a freshly registered guest
func NewPoll(subject Guest, maxVotes int, now time.Time) Poll {
	return Poll{
		GuestID:     subject.ID,
		EventID:     subject.EventID,
		GuestName:   subject.Name,
		Question:    Question(subject.Name),
		Options:     slices.Clone(PollOptions),
		Votes:       map[string]int{},
		VotedGuests: []string{},
		MaxVotes:    maxVotes,
		CreatedAt:   now,
	}
}

// Question renders the poll question for a subject name
func Question(name string) string {
	return fmt.Sprintf("Will you go out with %s?", name)
}

// MaxVotes returns the number of eligible voters for an event with
// guestCount guests, never less than one.
func MaxVotes(guestCount int) int {
	return max(1, guestCount-1)
}

// HasOption reports whether option is one of the poll's answers
func (p Poll) HasOption(option string) bool {
	return slices.Contains(p.Options, option)
}

// HasVoted reports whether the guest document id already voted
func (p Poll) HasVoted(guestID string) bool {
	return slices.Contains(p.VotedGuests, guestID)
}

// TotalVotes sums all option counts
func (p Poll) TotalVotes() int {
	total := 0
	for _, n := range p.Votes {
		total += n
	}
	return total
}

// WithVote returns the votes and voted guests after one more vote for
// option by voterID. The receiver is left untouched.
func (p Poll) WithVote(voterID, option string) (map[string]int, []string) {
	votes := make(map[string]int, len(p.Votes)+1)
	for k, v := range p.Votes {
		votes[k] = v
	}
	votes[option]++

	voted := make([]string, 0, len(p.VotedGuests)+1)
	voted = append(voted, p.VotedGuests...)
	voted = append(voted, voterID)
	return votes, voted
}
