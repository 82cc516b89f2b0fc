package chrono

import "time"

// API is the clock every delay in the scraper goes through, so that polling and crawl pacing can be
// driven without sleeping in tests.
type API interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type StandardImpl struct{}

func NewStandardImpl() StandardImpl {
	return StandardImpl{}
}

func (StandardImpl) Now() time.Time {
	return time.Now()
}

func (StandardImpl) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
