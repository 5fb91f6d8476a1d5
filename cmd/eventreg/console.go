package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"speed-dating-events/internal/config"
	"speed-dating-events/internal/models"
	"speed-dating-events/internal/qr"
	"speed-dating-events/internal/registry"
	"speed-dating-events/internal/session"
)

func runConsole(ctx context.Context, envFile string, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	newConsole(a.reg, a.sessions, cfg.PublicBaseURL, in, out).run(ctx)
	return nil
}

// console is the organizer menu. It holds its own session, so logging
// in here grants nothing to web visitors.
type console struct {
	reg      *registry.Registry
	sessions *session.Manager
	baseURL  string
	scanner  *bufio.Scanner
	out      io.Writer

	sessionID string
	eventID   string
}

func newConsole(reg *registry.Registry, sessions *session.Manager, baseURL string, in io.Reader, out io.Writer) *console {
	c := &console{
		reg:       reg,
		sessions:  sessions,
		baseURL:   baseURL,
		scanner:   bufio.NewScanner(in),
		out:       out,
		sessionID: sessions.Start().ID,
	}
	if events := reg.Events(); len(events) > 0 {
		c.eventID = events[0].ID
	}
	return c
}

func (c *console) run(ctx context.Context) {
	defer c.sessions.End(c.sessionID)

	fmt.Fprintln(c.out, "💘 Speed Dating Event Registry")
	fmt.Fprintln(c.out, "==============================")

	for {
		c.printf("\nCurrent event: %s\n", c.eventLabel())
		fmt.Fprintln(c.out, "Commands:")
		fmt.Fprintln(c.out, "  1. Register guest")
		fmt.Fprintln(c.out, "  2. Look up guest by code or link")
		fmt.Fprintln(c.out, "  3. Vote")
		fmt.Fprintln(c.out, "  4. Select event")
		fmt.Fprintln(c.out, "  5. Admin login")
		fmt.Fprintln(c.out, "  6. Dashboard")
		fmt.Fprintln(c.out, "  7. Create event")
		fmt.Fprintln(c.out, "  8. Edit event")
		fmt.Fprintln(c.out, "  9. Delete event")
		fmt.Fprintln(c.out, "  0. Exit")

		command, ok := c.prompt("\nEnter command (0-9): ")
		if !ok {
			return
		}

		switch command {
		case "1":
			c.registerGuest(ctx)
		case "2":
			c.lookupGuest()
		case "3":
			c.vote(ctx)
		case "4":
			c.selectEvent()
		case "5":
			c.login()
		case "6":
			c.admin(c.dashboard)
		case "7":
			c.admin(func() { c.createEvent(ctx) })
		case "8":
			c.admin(func() { c.editEvent(ctx) })
		case "9":
			c.admin(func() { c.deleteEvent(ctx) })
		case "0":
			fmt.Fprintln(c.out, "Goodbye! 👋")
			return
		default:
			fmt.Fprintln(c.out, "Invalid command. Please try again.")
		}
	}
}

func (c *console) registerGuest(ctx context.Context) {
	if c.eventID == "" {
		fmt.Fprintln(c.out, "No event selected.")
		return
	}
	name, ok := c.prompt("Name: ")
	if !ok {
		return
	}
	ageText, ok := c.prompt("Age: ")
	if !ok {
		return
	}
	age, err := strconv.Atoi(ageText)
	if err != nil {
		fmt.Fprintln(c.out, "❌ Age must be a number.")
		return
	}
	important, _ := c.prompt("What matters most to you? ")
	goal, _ := c.prompt("What are you looking for? ")

	res, err := c.reg.RegisterGuest(ctx, c.sessionID, registry.Registration{
		EventID:   c.eventID,
		Name:      name,
		Age:       age,
		Important: important,
		Goal:      goal,
	})
	if err != nil {
		c.printf("❌ Registration failed: %v\n", err)
		return
	}

	link := qr.GuestURL(c.baseURL, res.Guest.GuestID)
	c.printf("✅ Registered %s (code %s)\n", res.Guest.Name, res.Guest.GuestID)
	if code, err := qr.Terminal(link); err == nil {
		fmt.Fprintln(c.out, code)
	}
	c.printf("Guest page: %s\n", link)
	if res.SyncWarning != nil {
		c.printf("⚠️  Some polls could not be updated: %v\n", res.SyncWarning)
	}
}

func (c *console) lookupGuest() {
	text, ok := c.prompt("Guest code or link: ")
	if !ok {
		return
	}
	guest, err := c.resolve(text)
	if err != nil {
		c.printf("❌ %v\n", err)
		return
	}

	c.printf("\n%s, %d\n", guest.Name, guest.Age)
	c.printf("Points: %d\n", guest.Points)
	if len(guest.Activities) > 0 {
		c.printf("Activities: %s\n", strings.Join(guest.Activities, ", "))
	}
	polls, err := c.reg.AvailablePolls(guest.ID)
	if err != nil {
		return
	}
	c.printf("Polls (%d):\n", len(polls))
	for _, p := range polls {
		mark := " "
		if c.reg.HasVoted(p, guest.ID) {
			mark = "✓"
		}
		c.printf("  [%s] %s (%d/%d votes)\n", mark, p.Question, p.TotalVotes(), p.MaxVotes)
	}
}

func (c *console) vote(ctx context.Context) {
	text, ok := c.prompt("Your guest code or link: ")
	if !ok {
		return
	}
	voter, err := c.resolve(text)
	if err != nil {
		c.printf("❌ %v\n", err)
		return
	}

	var open []models.Poll
	polls, _ := c.reg.AvailablePolls(voter.ID)
	for _, p := range polls {
		if !c.reg.HasVoted(p, voter.ID) {
			open = append(open, p)
		}
	}
	if len(open) == 0 {
		fmt.Fprintln(c.out, "No open polls right now.")
		return
	}
	for i, p := range open {
		c.printf("  %d. %s\n", i+1, p.Question)
	}
	poll, ok := choose(c, "Poll: ", open)
	if !ok {
		return
	}
	for i, o := range poll.Options {
		c.printf("  %d. %s\n", i+1, o)
	}
	option, ok := choose(c, "Answer: ", poll.Options)
	if !ok {
		return
	}

	if err := c.reg.CastVote(ctx, poll.ID, voter.ID, option); err != nil {
		c.printf("❌ Vote failed: %v\n", err)
		return
	}
	if g, err := c.reg.Guest(voter.ID); err == nil {
		c.printf("✅ Vote recorded! You now have %d points.\n", g.Points)
	}
}

func (c *console) selectEvent() {
	events := c.reg.Events()
	for i, e := range events {
		c.printf("  %d. %s (%s)\n", i+1, e.Name, e.Date)
	}
	if e, ok := choose(c, "Event: ", events); ok {
		c.eventID = e.ID
	}
}

func (c *console) login() {
	secret, ok := c.prompt("Admin password: ")
	if !ok {
		return
	}
	if _, err := c.sessions.Login(c.sessionID, secret); err != nil {
		c.printf("❌ %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "✅ Logged in as admin.")
}

func (c *console) admin(fn func()) {
	s, err := c.sessions.Get(c.sessionID)
	if err != nil || !s.Authenticated {
		fmt.Fprintln(c.out, "Admin login required (command 5).")
		return
	}
	fn()
}

func (c *console) dashboard() {
	d, err := c.reg.Dashboard(c.eventID)
	if err != nil {
		c.printf("❌ %v\n", err)
		return
	}

	c.printf("\n📊 %s (%s)\n", d.Event.Name, d.Event.Date)
	c.printf("Guests: %d  Active: %d  Points: %d  Votes: %d\n", d.TotalGuests, d.ActiveGuests, d.TotalPoints, d.TotalVotes)
	fmt.Fprintln(c.out, strings.Repeat("-", 60))
	for _, row := range d.Guests {
		c.printf("%s, %d  points: %d  code: %s\n", row.Guest.Name, row.Guest.Age, row.Guest.Points, row.Guest.GuestID)
		if row.Poll == nil {
			continue
		}
		res, err := c.reg.PollResults(row.Guest.ID)
		if err != nil {
			continue
		}
		for _, o := range res.Results {
			c.printf("    %s: %d (%.1f%%)\n", o.Option, o.Count, o.Percentage)
		}
	}
	fmt.Fprintln(c.out, strings.Repeat("-", 60))
}

func (c *console) createEvent(ctx context.Context) {
	name, _ := c.prompt("Event name: ")
	date, _ := c.prompt("Date (YYYY-MM-DD): ")
	e, err := c.reg.CreateEvent(ctx, name, date)
	if err != nil {
		c.printf("❌ %v\n", err)
		return
	}
	c.eventID = e.ID
	c.printf("✅ Created %s\n", e.Name)
}

func (c *console) editEvent(ctx context.Context) {
	name, _ := c.prompt("New name (blank keeps current): ")
	date, _ := c.prompt("New date (blank keeps current): ")
	e, err := c.reg.EditEvent(ctx, c.eventID, name, date)
	if err != nil {
		c.printf("❌ %v\n", err)
		return
	}
	c.printf("✅ Updated %s (%s)\n", e.Name, e.Date)
}

func (c *console) deleteEvent(ctx context.Context) {
	answer, _ := c.prompt(fmt.Sprintf("Delete %s with all its guests and polls? (yes/no): ", c.eventLabel()))
	if !strings.EqualFold(answer, "yes") {
		fmt.Fprintln(c.out, "Cancelled.")
		return
	}

	next, err := c.reg.DeleteEvent(ctx, c.eventID)
	if next != "" {
		c.eventID = next
	}
	switch {
	case errors.Is(err, registry.ErrLastEvent):
		fmt.Fprintln(c.out, "❌ Cannot delete the last event.")
	case err != nil && next == "":
		c.printf("❌ %v\n", err)
	case err != nil:
		c.printf("⚠️  Event deleted, some guests or polls remain: %v\n", err)
	default:
		fmt.Fprintln(c.out, "✅ Event deleted.")
	}
}

func (c *console) resolve(text string) (models.Guest, error) {
	token, err := qr.TokenFromText(text)
	if err != nil {
		return models.Guest{}, err
	}
	guest, err := c.reg.ResolveGuestByToken(token)
	if errors.Is(err, registry.ErrNotFound) {
		return models.Guest{}, errors.New("guest not found, try again in a moment")
	}
	return guest, err
}

func (c *console) eventLabel() string {
	e, err := c.reg.Event(c.eventID)
	if err != nil {
		return "(none)"
	}
	return fmt.Sprintf("%s (%s)", e.Name, e.Date)
}

func (c *console) prompt(label string) (string, bool) {
	fmt.Fprint(c.out, label)
	if !c.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.scanner.Text()), true
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// choose reads a 1-based index into items
func choose[T any](c *console, label string, items []T) (T, bool) {
	var zero T
	text, ok := c.prompt(label)
	if !ok {
		return zero, false
	}
	i, err := strconv.Atoi(text)
	if err != nil || i < 1 || i > len(items) {
		fmt.Fprintln(c.out, "Invalid choice.")
		return zero, false
	}
	return items[i-1], true
}
