// Package timeframe turns symbolic time frame names into concrete UTC windows.
package timeframe

import (
	"fmt"
	"time"

	"github.com/voltwatch/backend/internal/utils"
)

// Frame is a symbolic time frame name
type Frame string

const (
	Today       Frame = "today"
	TodayPartly Frame = "todayPartly"
	TodayLive   Frame = "todayLive"
	Last7Days   Frame = "last7days"
	Last30Days  Frame = "last30days"
	Custom      Frame = "custom"
)

// LiveSpan is how far back the todayLive frame reaches
const LiveSpan = 5 * time.Minute

// Known lists every frame the resolver can compute
var Known = []Frame{Today, TodayPartly, TodayLive, Last7Days, Last30Days, Custom}

// ParseFrame returns the frame named s
func ParseFrame(s string) (Frame, bool) {
	for _, f := range Known {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Request is a caller's time frame selection. Bounds are only consulted for
// todayPartly and custom. A nil WholeDay means true.
type Request struct {
	Frame     Frame
	StartDate *time.Time
	EndDate   *time.Time
	WholeDay  *bool
}

// Window is a closed time range
type Window struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// StartMs returns the window start in epoch milliseconds
func (w Window) StartMs() int64 {
	return w.StartDate.UnixMilli()
}

// EndMs returns the window end in epoch milliseconds
func (w Window) EndMs() int64 {
	return w.EndDate.UnixMilli()
}

// Valid reports whether both bounds are set and start <= end
func (w Window) Valid() bool {
	return !w.StartDate.IsZero() && !w.EndDate.IsZero() && !w.StartDate.After(w.EndDate)
}

// StartOfDay returns midnight of t's UTC calendar day
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last millisecond of t's UTC calendar day
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Millisecond)
}

// Resolver computes windows for a configured list of recognised frames
type Resolver struct {
	frames []Frame
	now    func() time.Time
}

// NewResolver creates a resolver for the named frames
func NewResolver(names []string) (*Resolver, error) {
	frames := make([]Frame, 0, len(names))
	for _, name := range names {
		f, ok := ParseFrame(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown time frame %q", utils.ErrValidation, name)
		}
		frames = append(frames, f)
	}
	return &Resolver{frames: frames, now: time.Now}, nil
}

// WithClock returns a copy of the resolver that reads the time from now
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	return &Resolver{frames: r.frames, now: now}
}

// Frames returns the recognised frames
func (r *Resolver) Frames() []Frame {
	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Recognises reports whether f is in the configured list
func (r *Resolver) Recognises(f Frame) bool {
	for _, known := range r.frames {
		if known == f {
			return true
		}
	}
	return false
}

// Resolve returns a window for every recognised frame. Frames that need
// caller bounds are left out when the request does not carry both of them.
func (r *Resolver) Resolve(req Request) (map[Frame]Window, error) {
	if req.Frame != "" && !r.Recognises(req.Frame) {
		return nil, fmt.Errorf("%w: unknown time frame %q", utils.ErrValidation, req.Frame)
	}

	now := r.now().UTC()
	out := make(map[Frame]Window, len(r.frames))
	for _, f := range r.frames {
		if w, ok := resolveOne(f, req, now); ok {
			out[f] = w
		}
	}
	return out, nil
}

// Window resolves the requested frame alone. A missing or inverted window is
// a validation error.
func (r *Resolver) Window(req Request) (Window, error) {
	if req.Frame == "" {
		return Window{}, fmt.Errorf("%w: time frame is required", utils.ErrValidation)
	}

	windows, err := r.Resolve(req)
	if err != nil {
		return Window{}, err
	}

	w, ok := windows[req.Frame]
	if !ok {
		return Window{}, fmt.Errorf("%w: time frame %q requires startDate and endDate", utils.ErrValidation, req.Frame)
	}
	if !w.Valid() {
		return Window{}, fmt.Errorf("%w: time frame %q has startDate after endDate", utils.ErrValidation, req.Frame)
	}
	return w, nil
}

func resolveOne(f Frame, req Request, now time.Time) (Window, bool) {
	switch f {
	case Today:
		return Window{StartDate: StartOfDay(now), EndDate: EndOfDay(now)}, true
	case TodayLive:
		return Window{StartDate: now.Add(-LiveSpan), EndDate: now}, true
	case Last7Days:
		return Window{StartDate: StartOfDay(now).AddDate(0, 0, -7), EndDate: EndOfDay(now)}, true
	case Last30Days:
		return Window{StartDate: StartOfDay(now).AddDate(0, 0, -30), EndDate: EndOfDay(now)}, true
	case TodayPartly:
		if req.StartDate == nil || req.EndDate == nil {
			return Window{}, false
		}
		return Window{StartDate: req.StartDate.UTC(), EndDate: req.EndDate.UTC()}, true
	case Custom:
		if req.StartDate == nil || req.EndDate == nil {
			return Window{}, false
		}
		// Inverted bounds are kept as given so Valid reports them before any snapping.
		if req.StartDate.After(*req.EndDate) || (req.WholeDay != nil && !*req.WholeDay) {
			return Window{StartDate: req.StartDate.UTC(), EndDate: req.EndDate.UTC()}, true
		}
		return Window{StartDate: StartOfDay(*req.StartDate), EndDate: EndOfDay(*req.EndDate)}, true
	}
	return Window{}, false
}
