package logger

import (
	"log/slog"
	"sync"
)

// Event is one log record as kept in memory and streamed to subscribers.
type Event struct {
	Seq     uint64         `json:"seq"`
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Msg     string         `json:"msg"`
	TraceID string         `json:"traceId,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`

	level slog.Level
}

// journal is a bounded circular buffer of recent events with per-level
// totals and a set of live subscribers.
type journal struct {
	mu     sync.Mutex
	events []Event
	head   int
	size   int
	seq    uint64
	counts map[string]int
	subs   map[*subscription]struct{}
}

type subscription struct {
	ch  chan Event
	min slog.Level
}

const defaultJournalSize = 1000

var events = newJournal(defaultJournalSize)

func newJournal(n int) *journal {
	return &journal{
		events: make([]Event, max(n, 1)),
		counts: map[string]int{},
		subs:   map[*subscription]struct{}{},
	}
}

func (j *journal) append(evt Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	evt.Seq = j.seq
	j.counts[evt.Level]++

	idx := (j.head + j.size) % len(j.events)
	j.events[idx] = evt
	if j.size < len(j.events) {
		j.size++
	} else {
		j.head = (j.head + 1) % len(j.events)
	}

	for s := range j.subs {
		if evt.level < s.min {
			continue
		}
		// Slow readers lose events; logging never blocks on them.
		select {
		case s.ch <- evt:
		default:
		}
	}
}

// tail returns up to limit of the newest events, oldest first.
func (j *journal) tail(limit int) []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	if limit <= 0 || limit > j.size {
		limit = j.size
	}
	out := make([]Event, 0, limit)
	for i := j.size - limit; i < j.size; i++ {
		out = append(out, j.events[(j.head+i)%len(j.events)])
	}
	return out
}

func (j *journal) resize(n int) {
	kept := j.tail(n)
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = make([]Event, max(n, 1))
	j.head = 0
	j.size = copy(j.events, kept)
}

// SetRingSize bounds the number of retained events; older ones are dropped.
func SetRingSize(n int) {
	events.resize(max(n, 1))
}

// Recent returns the newest limit events, oldest first. A non-positive
// limit returns everything retained.
func Recent(limit int) []Event {
	return events.tail(limit)
}

// LevelCounts returns how many events of each level were recorded since the
// last Clear, including events already dropped from the buffer.
func LevelCounts() map[string]int {
	events.mu.Lock()
	defer events.mu.Unlock()
	out := make(map[string]int, len(events.counts))
	for k, v := range events.counts {
		out[k] = v
	}
	return out
}

func Clear() {
	events.mu.Lock()
	defer events.mu.Unlock()
	clear(events.events)
	events.head, events.size = 0, 0
	events.counts = map[string]int{}
}

// Subscribe streams every subsequent event. The returned func detaches the
// subscription and closes the channel.
func Subscribe(buffer int) (<-chan Event, func()) {
	return SubscribeLevel(buffer, slog.LevelDebug)
}

// SubscribeLevel is Subscribe restricted to events at or above floor.
func SubscribeLevel(buffer int, floor slog.Level) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 256
	}
	s := &subscription{ch: make(chan Event, buffer), min: floor}
	events.mu.Lock()
	events.subs[s] = struct{}{}
	events.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			events.mu.Lock()
			delete(events.subs, s)
			close(s.ch)
			events.mu.Unlock()
		})
	}
}

func Subscribers() int {
	events.mu.Lock()
	defer events.mu.Unlock()
	return len(events.subs)
}

// ParseLevel maps a level name to a slog level; unknown names are info.
func ParseLevel(v string) slog.Level {
	return parseLevel(v)
}
