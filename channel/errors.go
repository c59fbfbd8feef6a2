package channel

import "errors"

// ErrInvalidChannel is returned by ReadOnlyChannel.NewReader when the
// underlying Channel has already been collected. A detached Writer does
// not return this error; its Write and WriteAtomic report false instead.
var ErrInvalidChannel = errors.New("channel: channel no longer exists")
