package katcp

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fpgactl/go-katcp/internal/queue"
)

// pendingRequest tracks one in-flight non-blocking request: its identity,
// callbacks, and the reply and informs recorded for it so far.
type pendingRequest struct {
	id         string
	seq        uint64 // numeric value behind id, used for the eviction tie-break
	name       string
	host       string
	submitTime time.Time

	informCb MessageHandler
	replyCb  MessageHandler

	informs *queue.FIFO[*Message]
	reply   *Message
}

func (r *pendingRequest) handle() RequestHandle {
	return RequestHandle{Host: r.host, Name: r.name, ID: r.id}
}

// pendingTable is a bounded table of in-flight requests keyed by request id.
//
// The id counter is guarded by the same mutex as the mapping, so admission
// (evict if full, allocate id, register) is a single atomic step and the
// capacity bound holds under concurrent submitters. Entry state is also
// mutated under the table lock, so a recorded reply is observable through
// result() as soon as recordReply returns.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingRequest
	nextSeq uint64
	limit   int
}

func newPendingTable(limit int) *pendingTable {
	return &pendingTable{
		entries: make(map[string]*pendingRequest, limit),
		limit:   limit,
	}
}

// nextRequestID allocates the next request id and its numeric sequence value.
// Ids are strictly increasing and never reset for the lifetime of the table.
func (t *pendingTable) nextRequestID() (string, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.nextRequestIDLocked()
}

func (t *pendingTable) nextRequestIDLocked() (string, uint64) {
	t.nextSeq++
	return strconv.FormatUint(t.nextSeq, 10), t.nextSeq
}

// add registers an entry under its id. It fails with ErrDuplicateRequest if
// the id is already present.
func (t *pendingTable) add(r *pendingRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[r.id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, r.id)
	}

	if r.informs == nil {
		r.informs = queue.NewFIFO[*Message](4)
	}
	t.entries[r.id] = r

	return nil
}

// getByID returns the entry for the given id without removing it.
func (t *pendingTable) getByID(id string) (*pendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.entries[id]

	return r, ok
}

// popByID removes and returns the entry for the given id.
func (t *pendingTable) popByID(id string) (*pendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}

	return r, ok
}

// popOldest removes and returns the entry with the earliest submit time,
// ties broken by the lowest numeric id. It fails with ErrEmptyTable if the
// table is empty.
func (t *pendingTable) popOldest() (*pendingRequest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.popOldestLocked()
}

func (t *pendingTable) popOldestLocked() (*pendingRequest, error) {
	if len(t.entries) == 0 {
		return nil, ErrEmptyTable
	}

	var oldest *pendingRequest
	for _, r := range t.entries {
		if oldest == nil || r.submitTime.Before(oldest.submitTime) ||
			(r.submitTime.Equal(oldest.submitTime) && r.seq < oldest.seq) {
			oldest = r
		}
	}
	delete(t.entries, oldest.id)

	return oldest, nil
}

// insert admits a new request: it evicts the oldest entry when the table is
// full, allocates the next id, stamps the submit time, and registers the
// entry, all in one critical section. It returns the new entry and the
// evicted one, if any.
func (t *pendingTable) insert(host, name string, informCb, replyCb MessageHandler) (*pendingRequest, *pendingRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted *pendingRequest
	if len(t.entries) >= t.limit {
		evicted, _ = t.popOldestLocked() // cannot fail, the table is full
	}

	id, seq := t.nextRequestIDLocked()
	r := &pendingRequest{
		id:         id,
		seq:        seq,
		name:       name,
		host:       host,
		submitTime: time.Now(),
		informCb:   informCb,
		replyCb:    replyCb,
		informs:    queue.NewFIFO[*Message](4),
	}
	t.entries[r.id] = r

	return r, evicted
}

// recordReply stores a copy of the reply on the entry for the given id and
// returns the reply callback to invoke, the entry's handle, and the stored
// copy. It fails with ErrUnknownCorrelation if the id is not present.
func (t *pendingTable) recordReply(id string, msg *Message) (MessageHandler, RequestHandle, *Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.entries[id]
	if !ok {
		return nil, RequestHandle{}, nil, fmt.Errorf("%w: %s", ErrUnknownCorrelation, id)
	}

	cp := msg.Copy()
	r.reply = cp

	return r.replyCb, r.handle(), cp, nil
}

// recordInform appends a copy of the inform to the entry for the given id
// and returns the inform callback to invoke, the entry's handle, and the
// stored copy. It fails with ErrUnknownCorrelation if the id is not present.
func (t *pendingTable) recordInform(id string, msg *Message) (MessageHandler, RequestHandle, *Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.entries[id]
	if !ok {
		return nil, RequestHandle{}, nil, fmt.Errorf("%w: %s", ErrUnknownCorrelation, id)
	}

	cp := msg.Copy()
	r.informs.Enqueue(cp)

	return r.informCb, r.handle(), cp, nil
}

// result returns the reply recorded so far (nil if none) and a snapshot of
// the accumulated informs for the given id, without removing the entry.
func (t *pendingTable) result(id string) (*Message, []*Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.entries[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownCorrelation, id)
	}

	return r.reply, r.informs.Snapshot(), nil
}

// popResult removes the entry for the given id and returns its final reply
// and informs.
func (t *pendingTable) popResult(id string) (*Message, []*Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.entries[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownCorrelation, id)
	}
	delete(t.entries, id)

	return r.reply, r.informs.Snapshot(), nil
}

// count returns the number of pending entries.
func (t *pendingTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}
