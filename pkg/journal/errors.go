package journal

import "fmt"

// WrongWriterError is returned when a process tries to append to a journal
// owned by another machine.
type WrongWriterError struct {
	Local  string
	Target string
}

func (e *WrongWriterError) Error() string {
	return fmt.Sprintf("machine %q cannot append to the journal of %q", e.Local, e.Target)
}

// CorruptLogError is returned when a journal line fails to parse or verify.
type CorruptLogError struct {
	Machine string
	Line    int
	Err     error
}

func (e *CorruptLogError) Error() string {
	return fmt.Sprintf("corrupt journal %s at line %d: %v", e.Machine, e.Line, e.Err)
}

func (e *CorruptLogError) Unwrap() error {
	return e.Err
}
