package eventstream

import "errors"

// ErrNilEvent indicates a nil event payload was provided to a publisher.
var ErrNilEvent = errors.New("nil journal event")
