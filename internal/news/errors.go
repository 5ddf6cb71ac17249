package news

import "fmt"

// FetchError means a source could not be read this cycle.
type FetchError struct {
	SourceKey string
	URL       string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageError is a marker read or write failure.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MediaResolutionError is logged and swallowed by the resolver.
type MediaResolutionError struct {
	Strategy string
	URL      string
	Err      error
}

func (e *MediaResolutionError) Error() string {
	return fmt.Sprintf("media %s %s: %v", e.Strategy, e.URL, e.Err)
}

func (e *MediaResolutionError) Unwrap() error { return e.Err }

// PublishError is a failed ladder step.
type PublishError struct {
	Step string
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Step, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
