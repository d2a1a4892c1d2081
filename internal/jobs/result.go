package jobs

// Source names where a result's data came from. It is sent to clients in
// the X-Data-Source header.
type Source string

const (
	SourceDatabase Source = "database"
	SourceFixture  Source = "fixture"
)

// Result carries data together with how it was obtained. A degraded result
// holds fixture data and the persistence error that caused the fallback.
type Result[T any] struct {
	Data     T
	Degraded bool
	Cause    error
}

func (r Result[T]) Source() Source {
	if r.Degraded {
		return SourceFixture
	}
	return SourceDatabase
}

func ok[T any](v T) Result[T] {
	return Result[T]{Data: v}
}

func degraded[T any](v T, cause error) Result[T] {
	return Result[T]{Data: v, Degraded: true, Cause: cause}
}
