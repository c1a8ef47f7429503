package prefs

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/prefs/schema"
)

// Txn batches edits to a record. Values change in memory immediately; the
// record is written once, when the transaction ends, and only if some value
// actually changed. End a transaction with Commit, or defer Close.
type Txn struct {
	r        *Record
	id       uuid.UUID
	started  time.Time
	modified bool
	done     bool
}

// Edit opens a transaction. Only one transaction per record may be open at
// a time; opening a second one panics.
func (r *Record) Edit() *Txn {
	if r.editing {
		panic("prefs: Edit called while a transaction is already open")
	}
	r.editing = true
	return &Txn{r: r, id: uuid.New(), started: time.Now()}
}

// Update runs fn inside a transaction and commits it. Edits made before fn
// returns an error are kept and flushed; the returned error joins fn's error
// with any flush error.
func (r *Record) Update(fn func(tx *Txn) error) error {
	tx := r.Edit()
	defer tx.Close()
	ferr := fn(tx)
	return errors.Join(ferr, tx.Commit())
}

// ID identifies the transaction in log output.
func (tx *Txn) ID() uuid.UUID { return tx.id }

// Modified reports whether any Set changed a value.
func (tx *Txn) Modified() bool { return tx.modified }

// Set changes f within the transaction. It panics if the transaction has
// ended, f is not a field of the record's schema, or v is text that is not
// valid UTF-8.
func Set[T schema.Scalar](tx *Txn, f schema.Field[T], v T) {
	tx.r.mustOwn(f)
	if err := tx.SetValue(f.Name(), v); err != nil {
		panic(err)
	}
}

// TxGet reads f through the transaction, seeing its uncommitted edits.
func TxGet[T schema.Scalar](tx *Txn, f schema.Field[T]) T {
	return Get(tx.r, f)
}

// SetValue is the untyped form of Set.
func (tx *Txn) SetValue(name string, v any) error {
	if tx.done {
		panic("prefs: Set on a finished transaction")
	}
	changed, err := tx.r.set(name, v)
	if err != nil {
		return err
	}
	if changed {
		tx.modified = true
	}
	return nil
}

func (tx *Txn) Value(name string) (any, bool) {
	return tx.r.Value(name)
}

// Commit ends the transaction and writes the record if it was modified.
// Calling Commit again is a no-op.
func (tx *Txn) Commit() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.r.editing = false
	tx.checkElapsed()
	if !tx.modified {
		return nil
	}
	if err := tx.r.save(); err != nil {
		return err
	}
	tx.r.logger.Debug("transaction committed", "txn", tx.id)
	return nil
}

// Close ends the transaction like Commit but logs a write failure instead of
// returning it. It does nothing after Commit.
func (tx *Txn) Close() {
	if tx.done {
		return
	}
	if err := tx.Commit(); err != nil {
		tx.r.logger.Error("saving preferences on transaction close",
			"txn", tx.id,
			"location", tx.r.Describe(),
			"error", err,
		)
	}
}

func (tx *Txn) checkElapsed() {
	limit := tx.r.slowEdit
	if limit <= 0 {
		return
	}
	if elapsed := time.Since(tx.started); elapsed > limit {
		tx.r.logger.Warn("preferences edit held open too long",
			"txn", tx.id,
			"elapsed", elapsed,
			"threshold", limit,
			"location", tx.r.Describe(),
		)
	}
}
