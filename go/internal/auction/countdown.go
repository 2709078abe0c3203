package auction

import (
	"fmt"
	"time"

	"github.com/mcdev12/bidly/go/internal/models"
)

// Phase is the countdown's display state
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseUnavailable
	PhaseRunning
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseUnavailable:
		return "unavailable"
	case PhaseRunning:
		return "running"
	case PhaseEnded:
		return "ended"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

const (
	TextLoading     = "Loading auction status..."
	TextUnavailable = "End date not available"
	TextEnded       = "Auction Ended"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
)

// Remaining is a non-negative duration split for display
type Remaining struct {
	Days    int64
	Hours   int64
	Minutes int64
	Seconds int64
}

// Decompose splits totalSeconds into days, hours, minutes and seconds.
// Negative input is treated as zero.
func Decompose(totalSeconds int64) Remaining {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	return Remaining{
		Days:    totalSeconds / secondsPerDay,
		Hours:   (totalSeconds % secondsPerDay) / secondsPerHour,
		Minutes: (totalSeconds % secondsPerHour) / secondsPerMinute,
		Seconds: totalSeconds % secondsPerMinute,
	}
}

func (r Remaining) String() string {
	return fmt.Sprintf("%dd %dh %dm %ds", r.Days, r.Hours, r.Minutes, r.Seconds)
}

// TotalSeconds inverts Decompose
func (r Remaining) TotalSeconds() int64 {
	return r.Days*secondsPerDay + r.Hours*secondsPerHour + r.Minutes*secondsPerMinute + r.Seconds
}

// Reading is one evaluation of the countdown
type Reading struct {
	Phase     Phase
	Text      string
	Remaining Remaining
}

// Countdown evaluates the time left against the latest status. A cycle starts
// whenever the status end time changes to another end time; within a cycle
// Ended is latched, and a status without an end time does not reopen it.
type Countdown struct {
	status *models.AuctionStatus
	ended  bool
}

// SetStatus installs a fetched status and reports whether a new cycle began.
func (c *Countdown) SetStatus(status *models.AuctionStatus) bool {
	if status == nil {
		return false
	}
	if c.status != nil && c.status.SameEndTime(status) {
		c.status = status
		return false
	}
	if _, ok := status.EndTime(); !ok && c.ended {
		return false
	}
	c.status = status
	c.ended = false
	return true
}

// Evaluate computes the reading at now. justEnded is true only on the
// evaluation that first observes the end of the current cycle.
func (c *Countdown) Evaluate(now time.Time) (reading Reading, justEnded bool) {
	if c.status == nil {
		return Reading{Phase: PhaseLoading, Text: TextLoading}, false
	}

	end, ok := c.status.EndTime()
	if !ok {
		return Reading{Phase: PhaseUnavailable, Text: TextUnavailable}, false
	}

	if c.ended {
		return Reading{Phase: PhaseEnded, Text: TextEnded}, false
	}

	totalSeconds := int64(end.Sub(now) / time.Second)
	if totalSeconds <= 0 {
		c.ended = true
		return Reading{Phase: PhaseEnded, Text: TextEnded}, true
	}

	remaining := Decompose(totalSeconds)
	return Reading{Phase: PhaseRunning, Text: remaining.String(), Remaining: remaining}, false
}

// Ended reports whether the current cycle has reached the end
func (c *Countdown) Ended() bool {
	return c.ended
}
