package queue

import (
	"sort"
	"sync"
	"time"
)

const maxRetries = 3

// Queue is a thread-safe priority frontier. Items are held sorted by
// descending priority; dequeue order is strict priority with FIFO among
// equals. A URL is admitted at most once: once pending or visited it is
// silently dropped on re-enqueue.
type Queue struct {
	mu      sync.Mutex
	items   []Item
	pending map[string]struct{}
	visited map[string]struct{}

	excludedKeywords   []string
	excludedExtensions []string

	now func() time.Time
}

// Option customizes queue construction.
type Option func(*Queue)

// WithExcludedKeywords replaces the default URL keyword blocklist.
func WithExcludedKeywords(keywords []string) Option {
	return func(q *Queue) { q.excludedKeywords = keywords }
}

// WithExcludedExtensions replaces the default file extension blocklist.
func WithExcludedExtensions(extensions []string) Option {
	return func(q *Queue) { q.excludedExtensions = extensions }
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New constructs an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		pending:            make(map[string]struct{}),
		visited:            make(map[string]struct{}),
		excludedKeywords:   defaultExcludedKeywords,
		excludedExtensions: defaultExcludedExtensions,
		now:                func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue admits item if its normalized URL is new and crawlable. It returns
// false, without error, for anything already visited or pending, excluded by
// keyword or extension, or using a non-crawlable scheme.
func (q *Queue) Enqueue(item Item) bool {
	if !IsCrawlableURL(item.URL) {
		return false
	}
	normalized, err := NormalizeURL(item.URL)
	if err != nil || normalized == "" {
		return false
	}
	if matchesKeyword(normalized, q.excludedKeywords) {
		return false
	}
	if matchesExtension(normalized, q.excludedExtensions) {
		return false
	}
	item.URL = normalized
	if item.AddedAt.IsZero() {
		item.AddedAt = q.now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, seen := q.visited[normalized]; seen {
		return false
	}
	if _, queued := q.pending[normalized]; queued {
		return false
	}
	q.insert(item)
	q.pending[normalized] = struct{}{}
	return true
}

// insert places item after the last entry with priority >= item.Priority,
// keeping the slice sorted descending with FIFO order among equals.
func (q *Queue) insert(item Item) {
	i := sort.Search(len(q.items), func(i int) bool {
		return q.items[i].Priority < item.Priority
	})
	q.items = append(q.items, Item{})
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = item
}

// Dequeue pops the highest-priority item. The URL leaves the pending set but
// is not yet visited; the caller marks it visited on completion or requeues
// it on failure.
func (q *Queue) Dequeue() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	delete(q.pending, item.URL)
	return item, true
}

// RequeueForRetry re-admits a failed item at most 3 times, dropping its
// priority by 10 each attempt. The item is appended to the tail rather than
// re-sorted; imprecise ordering on retry is an accepted approximation.
func (q *Queue) RequeueForRetry(item Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if item.RetryCount >= maxRetries {
		return false
	}
	if _, seen := q.visited[item.URL]; seen {
		return false
	}
	if _, queued := q.pending[item.URL]; queued {
		return false
	}
	item.RetryCount++
	item.Priority -= 10
	q.items = append(q.items, item)
	q.pending[item.URL] = struct{}{}
	return true
}

// MarkVisited records the URL as done. Visited URLs are never admitted
// again.
func (q *Queue) MarkVisited(rawURL string) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		normalized = rawURL
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, normalized)
	q.visited[normalized] = struct{}{}
}

// HasVisited reports whether the URL was already completed.
func (q *Queue) HasVisited(rawURL string) bool {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		normalized = rawURL
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	_, seen := q.visited[normalized]
	return seen
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// GetStats summarizes the frontier.
func (q *Queue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Pending: len(q.items), Visited: len(q.visited)}
}

// Export snapshots the full queue state for checkpointing.
func (q *Queue) Export() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	state := State{
		VisitedURLs: make([]string, 0, len(q.visited)),
		QueuedItems: make([]Item, len(q.items)),
	}
	for u := range q.visited {
		state.VisitedURLs = append(state.VisitedURLs, u)
	}
	sort.Strings(state.VisitedURLs)
	copy(state.QueuedItems, q.items)
	return state
}

// Import replaces the queue contents with a checkpoint snapshot. Items are
// re-sorted by priority since serialized order is not guaranteed.
func (q *Queue) Import(state State) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make([]Item, len(state.QueuedItems))
	copy(q.items, state.QueuedItems)
	sort.SliceStable(q.items, func(i, j int) bool {
		return q.items[i].Priority > q.items[j].Priority
	})
	q.pending = make(map[string]struct{}, len(q.items))
	for _, item := range q.items {
		q.pending[item.URL] = struct{}{}
	}
	q.visited = make(map[string]struct{}, len(state.VisitedURLs))
	for _, u := range state.VisitedURLs {
		q.visited[u] = struct{}{}
	}
}

// Reset clears all state, including the visited set.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.pending = make(map[string]struct{})
	q.visited = make(map[string]struct{})
}
