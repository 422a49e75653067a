package crawler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/models"
)

// EventType identifies what happened during a crawl.
type EventType string

const (
	EventCrawlStarted  EventType = "crawl_started"
	EventPageVisited   EventType = "page_visited"
	EventPageSkipped   EventType = "page_skipped"
	EventSubsidyFound  EventType = "subsidy_found"
	EventPageError     EventType = "page_error"
	EventCrawlFinished EventType = "crawl_finished"
)

// Event is one progress notification. Reason is set for skips and errors;
// Subsidy is set for subsidy_found.
type Event struct {
	Type    EventType
	URL     string
	Reason  string
	Subsidy *models.ScrapedSubsidy
	Time    time.Time
}

// Listener receives crawl events. Listeners run synchronously on the crawl
// goroutine; a panicking listener is isolated and must never abort the run.
type Listener func(Event)

type broadcaster struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *zap.Logger
}

func newBroadcaster(logger *zap.Logger) *broadcaster {
	return &broadcaster{logger: logger}
}

func (b *broadcaster) add(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *broadcaster) emit(ev Event) {
	b.mu.RLock()
	listeners := b.listeners
	b.mu.RUnlock()
	for _, l := range listeners {
		b.dispatch(l, ev)
	}
}

func (b *broadcaster) dispatch(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event listener panicked",
				zap.String("event", string(ev.Type)),
				zap.Any("panic", r))
		}
	}()
	l(ev)
}
