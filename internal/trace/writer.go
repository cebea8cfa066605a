package trace

import (
	"log/slog"

	"github.com/google/uuid"
)

// batch is one pushed group of records bound for the store.
type batch struct {
	vaultKey string
	records  []Record
}

// Writer persists incoming record batches asynchronously via a buffered
// channel, so the ingest HTTP handler never blocks on the database.
// All methods are nil-safe (no-op on nil receiver).
type Writer struct {
	store  Store
	notify func(vaultKey string)
	ch     chan batch
	done   chan struct{}
}

// NewWriter creates a writer backed by store. notify, when non-nil, is called
// from the drain goroutine after each batch has landed in the store, so a
// subscriber rebuilding on the signal always sees the batch it was notified
// about. Must call Close when done.
func NewWriter(store Store, notify func(vaultKey string)) *Writer {
	w := &Writer{
		store:  store,
		notify: notify,
		ch:     make(chan batch, 64),
		done:   make(chan struct{}),
	}
	go w.drain()
	return w
}

func (w *Writer) drain() {
	defer close(w.done)
	for b := range w.ch {
		if err := w.store.AppendRecords(b.vaultKey, b.records); err != nil {
			slog.Warn("trace write failed", "vault", b.vaultKey, "records", len(b.records), "error", err)
			continue
		}
		if w.notify != nil {
			w.notify(b.vaultKey)
		}
	}
}

// NewVaultKey generates a fresh vault key and registers it with the store.
func (w *Writer) NewVaultKey() (string, error) {
	if w == nil {
		return "", nil
	}
	key := uuid.NewString()
	if err := w.store.CreateVault(key); err != nil {
		return "", err
	}
	return key, nil
}

// Enqueue queues a record batch for persistence.
func (w *Writer) Enqueue(vaultKey string, records []Record) {
	if w == nil || len(records) == 0 {
		return
	}
	w.ch <- batch{vaultKey: vaultKey, records: records}
}

// Close drains pending writes and shuts down the background goroutine.
func (w *Writer) Close() {
	if w == nil {
		return
	}
	close(w.ch)
	<-w.done
}
