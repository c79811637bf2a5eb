package fetcher

import "fmt"

// FetchError is a failed fetch: network error, timeout, or a non-2xx/304
// response. Fetch errors never mutate the watermark; the scheduler retries
// them with backoff.
type FetchError struct {
	URL        string
	StatusCode int // 0 for transport-level failures
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// AuthError is a failed session authentication. The cycle terminates
// without touching the watermark so the next cycle retries login fresh.
type AuthError struct {
	LoginURL string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authenticate %s: %v", e.LoginURL, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
