package store

import "fmt"

// ReadError describes a failed read or decode. Store.Get never returns it;
// it is logged and the read is treated as "no data".
type ReadError struct {
	Key string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("store: read %s: %v", e.Key, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError is returned when a value could not be encoded or persisted.
// An empty Key means the failure happened while clearing the store.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store: clear: %v", e.Err)
	}
	return fmt.Sprintf("store: write %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
