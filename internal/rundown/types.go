package rundown

// EntryType distinguishes rundown entries.
type EntryType string

const (
	// TypeEvent is a timed, navigable cue.
	TypeEvent EntryType = "event"
	// TypeBlock is a structural heading. It resets accumulated delay.
	TypeBlock EntryType = "block"
	// TypeDelay shifts the schedule of every following cue in its block.
	TypeDelay EntryType = "delay"
)

// EndAction is applied when a playing cue runs out of time.
type EndAction string

const (
	EndActionNone     EndAction = "none"
	EndActionStop     EndAction = "stop"
	EndActionLoadNext EndAction = "load-next"
	EndActionPlayNext EndAction = "play-next"
)

// ParseEndAction validates s. The empty string maps to EndActionNone.
func ParseEndAction(s string) (EndAction, bool) {
	switch EndAction(s) {
	case "", EndActionNone:
		return EndActionNone, true
	case EndActionStop, EndActionLoadNext, EndActionPlayNext:
		return EndAction(s), true
	}
	return "", false
}

// Entry is one element of a rundown document. All times are milliseconds;
// TimeStart and TimeEnd are milliseconds of day, Duration is a length.
// A delay entry carries its (signed) shift in Duration.
type Entry struct {
	ID        string            `json:"id"`
	Type      EntryType         `json:"type"`
	Cue       string            `json:"cue"`
	Title     string            `json:"title"`
	Note      string            `json:"note"`
	Colour    string            `json:"colour"`
	TimeStart int64             `json:"timeStart"`
	TimeEnd   int64             `json:"timeEnd"`
	Duration  int64             `json:"duration"`
	LinkStart bool              `json:"linkStart"`
	IsPublic  bool              `json:"isPublic"`
	Skip      bool              `json:"skip"`
	EndAction EndAction         `json:"endAction"`
	Custom    map[string]string `json:"custom"`
}

// Rundown is the ordered show document.
type Rundown struct {
	Entries []Entry
}

// Clone returns a deep copy of r.
func (r Rundown) Clone() Rundown {
	out := Rundown{Entries: make([]Entry, len(r.Entries))}
	for i, e := range r.Entries {
		out.Entries[i] = e.clone()
	}
	return out
}

func (e Entry) clone() Entry {
	if e.Custom != nil {
		custom := make(map[string]string, len(e.Custom))
		for k, v := range e.Custom {
			custom[k] = v
		}
		e.Custom = custom
	}
	return e
}

// Cue is a navigable event with its derived schedule.
//
// Cues handed out by an Index are shared and must be treated as read-only.
type Cue struct {
	Entry

	// Position is the 0-based place of the cue in the navigable order.
	Position int `json:"-"`

	// Delay is the accumulated delay applied to this cue.
	Delay int64 `json:"delay"`

	// ScheduledStart and ScheduledEnd include Delay. ScheduledEnd may exceed
	// a day when the cue runs past midnight.
	ScheduledStart int64 `json:"-"`
	ScheduledEnd   int64 `json:"-"`

	// PlannedElapsed is the planned show time before this cue starts.
	PlannedElapsed int64 `json:"-"`

	// BlockID is the id of the nearest preceding block entry, if any.
	BlockID string `json:"-"`
}

// Block is a structural heading referenced by cues.
type Block struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Totals summarises the derived schedule.
type Totals struct {
	Count         int   `json:"count"`
	FirstStart    int64 `json:"firstStart"`
	LastEnd       int64 `json:"lastEnd"`
	TotalDuration int64 `json:"totalDuration"`
}
