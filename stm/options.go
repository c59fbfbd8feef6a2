package stm

// ConflictResolution controls what happens when a root transaction's
// bad-commit (validation-failure) count reaches its configured
// MaxConflicts.
type ConflictResolution int

const (
	// ConflictThrow raises ErrMaxConflicts once MaxConflicts is exceeded.
	ConflictThrow ConflictResolution = iota
	// ConflictRunLocked acquires the upgrade lock before the next attempt
	// once MaxConflicts is exceeded, guaranteeing that attempt commits
	// (nothing else can be mid-commit to conflict with).
	ConflictRunLocked
)

type limit struct {
	limited bool
	n       uint32
}

// options holds the resolved configuration for one Atomically call.
type options struct {
	maxConflicts    limit
	maxConflictsSet bool
	conflictRes     ConflictResolution

	maxRetries    limit
	maxRetriesSet bool

	maxRetryWait    Deadline
	maxRetryWaitSet bool
}

func defaultOptions() options {
	return options{
		maxRetryWait: Unlimited(),
	}
}

// Option configures one Atomically call. Passing the same kind of Option
// more than once keeps the first occurrence, matching the original's
// find-by-type argument dedup (wstm/find_arg.h).
type Option func(*options)

// MaxConflicts limits the number of times a root transaction may fail
// validation before res is applied. res defaults to ConflictThrow.
func MaxConflicts(n uint32, res ...ConflictResolution) Option {
	r := ConflictThrow
	if len(res) > 0 {
		r = res[0]
	}
	return func(o *options) {
		if o.maxConflictsSet {
			return
		}
		o.maxConflicts = limit{limited: true, n: n}
		o.conflictRes = r
		o.maxConflictsSet = true
	}
}

// MaxRetries limits the number of times a root transaction may Retry
// before ErrMaxRetries is raised.
func MaxRetries(n uint32) Option {
	return func(o *options) {
		if o.maxRetriesSet {
			return
		}
		o.maxRetries = limit{limited: true, n: n}
		o.maxRetriesSet = true
	}
}

// MaxRetryWait bounds how long any single Retry wait may block,
// regardless of the deadline passed to Retry itself; the smaller of the
// two is used.
func MaxRetryWait(d Deadline) Option {
	return func(o *options) {
		if o.maxRetryWaitSet {
			return
		}
		o.maxRetryWait = d
		o.maxRetryWaitSet = true
	}
}

func resolveOptions(opts []Option) options {
	o := defaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	return o
}
