package registry

import (
	"math"
	"slices"

	"speed-dating-events/internal/models"
)

// Dashboard summarizes one event for organizers
type Dashboard struct {
	Event        models.Event `json:"event"`
	TotalGuests  int          `json:"totalGuests"`
	ActiveGuests int          `json:"activeGuests"`
	TotalPoints  int          `json:"totalPoints"`
	TotalVotes   int          `json:"totalVotes"`
	Guests       []GuestRow   `json:"guests"`
}

// GuestRow is a guest with the poll about them, if it exists
type GuestRow struct {
	Guest models.Guest `json:"guest"`
	Poll  *models.Poll `json:"poll,omitempty"`
}

// Dashboard builds the organizer view of an event from the snapshot
func (r *Registry) Dashboard(eventID string) (Dashboard, error) {
	event, err := r.Event(eventID)
	if err != nil {
		return Dashboard{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	pollBySubject := make(map[string]models.Poll)
	d := Dashboard{Event: event, Guests: make([]GuestRow, 0)}
	for _, p := range r.polls {
		if p.EventID != eventID {
			continue
		}
		pollBySubject[p.GuestID] = p
		d.TotalVotes += p.TotalVotes()
	}

	for _, g := range r.guests {
		if g.EventID != eventID {
			continue
		}
		g = r.withPending(g)
		d.TotalGuests++
		d.TotalPoints += g.Points
		if g.Active() {
			d.ActiveGuests++
		}

		row := GuestRow{Guest: g}
		if p, ok := pollBySubject[g.ID]; ok {
			row.Poll = &p
		}
		d.Guests = append(d.Guests, row)
	}

	return d, nil
}

// OptionResult is one answer of a poll with its share of the votes
type OptionResult struct {
	Option     string  `json:"option"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PollResults is the organizer drill-down for one guest
type PollResults struct {
	Guest      models.Guest   `json:"guest"`
	Poll       models.Poll    `json:"poll"`
	TotalVotes int            `json:"totalVotes"`
	Results    []OptionResult `json:"results"`
}

// PollResults tallies the poll about the guest with document id guestID.
// Options are sorted by count, most votes first; ties keep option order.
// Percentages are rounded to one decimal and are 0 while nobody voted.
func (r *Registry) PollResults(guestID string) (PollResults, error) {
	guest, err := r.Guest(guestID)
	if err != nil {
		return PollResults{}, err
	}
	poll, err := r.PollAbout(guestID)
	if err != nil {
		return PollResults{}, err
	}

	options := slices.Clone(poll.Options)
	for option := range poll.Votes {
		if !slices.Contains(options, option) {
			options = append(options, option)
		}
	}
	// map order is random
	slices.Sort(options[len(poll.Options):])

	total := poll.TotalVotes()
	results := make([]OptionResult, 0, len(options))
	for _, option := range options {
		res := OptionResult{Option: option, Count: poll.Votes[option]}
		if total > 0 {
			res.Percentage = math.Round(float64(res.Count)*1000/float64(total)) / 10
		}
		results = append(results, res)
	}
	slices.SortStableFunc(results, func(a, b OptionResult) int { return b.Count - a.Count })

	return PollResults{Guest: guest, Poll: poll, TotalVotes: total, Results: results}, nil
}
