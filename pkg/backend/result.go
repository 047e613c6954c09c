package backend

// HostResult pairs one expanded host with either its typed value or its
// dispatch error. A fanned-out operation returns one entry per host in the
// order of the expanded host sequence, so callers can always tell "failed
// entirely" apart from "failed for some hosts".
type HostResult[T any] struct {
	Host  string
	Value T
	Err   error
}

// OK reports whether this host's call succeeded.
func (r HostResult[T]) OK() bool {
	return r.Err == nil
}

// HostResults is the ordered per-host outcome of one fanned-out operation.
type HostResults[T any] []HostResult[T]

// AllOK reports whether every host succeeded.
func (rs HostResults[T]) AllOK() bool {
	for _, r := range rs {
		if r.Err != nil {
			return false
		}
	}
	return true
}

// Values returns the succeeded values in host order.
func (rs HostResults[T]) Values() []T {
	values := make([]T, 0, len(rs))
	for _, r := range rs {
		if r.Err == nil {
			values = append(values, r.Value)
		}
	}
	return values
}

// Failed returns the subset of results that carry an error, in host order.
func (rs HostResults[T]) Failed() HostResults[T] {
	var failed HostResults[T]
	for _, r := range rs {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// FirstErr returns the first per-host error in host order, or nil.
func (rs HostResults[T]) FirstErr() error {
	for _, r := range rs {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
