package store

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mugshot/internal/logging"
)

const journalBuffer = 256

// Journal appends events for one session from a background writer so callers
// on the frame path never wait on the database. When the buffer is full new
// events are dropped and counted.
type Journal struct {
	events    *EventRepository
	sessionID string
	log       logrus.FieldLogger

	ch   chan Event
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewJournal starts a writer for sessionID.
func NewJournal(events *EventRepository, sessionID string, log logrus.FieldLogger) *Journal {
	if log == nil {
		log = logging.Discard()
	}
	j := &Journal{
		events:    events,
		sessionID: sessionID,
		log:       log,
		ch:        make(chan Event, journalBuffer),
		done:      make(chan struct{}),
	}
	go j.run()
	return j
}

// SessionID returns the session the journal writes to.
func (j *Journal) SessionID() string {
	return j.sessionID
}

// Record queues an event. It never blocks.
func (j *Journal) Record(kind string, seq uint64, detail string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return
	}
	select {
	case j.ch <- Event{SessionID: j.sessionID, Kind: kind, Seq: seq, Detail: detail}:
	default:
		j.dropped++
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (j *Journal) Dropped() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

// Close flushes queued events and stops the writer.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.ch)
	dropped := j.dropped
	j.mu.Unlock()

	<-j.done
	if dropped > 0 {
		j.log.WithField("dropped", dropped).Warn("journal buffer overflowed, events lost")
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for e := range j.ch {
		if err := j.events.Append(&e); err != nil {
			j.log.WithError(err).WithField("kind", e.Kind).Warn("journal write failed")
		}
	}
}
