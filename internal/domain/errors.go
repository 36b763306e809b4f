package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientContent rejects extracted text too short to summarize.
	ErrInsufficientContent = errors.New("not enough text extracted to summarize")
	// ErrSummarization is returned when both primary and fallback models fail.
	ErrSummarization = errors.New("summarization failed")
	// ErrPersistence wraps feed store write failures.
	ErrPersistence = errors.New("persist document")
	// ErrRobotsDisallowed marks a URL excluded by the host's robots.txt.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
)

// FetchError describes a transport failure or a non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
