package collector

import "fmt"

// ErrorKind classifies why a battery attribute could not be read.
type ErrorKind int

const (
	// KindIO means the attribute file could not be read.
	KindIO ErrorKind = iota
	// KindParse means the file was read but did not hold a non-negative integer.
	KindParse
)

func (k ErrorKind) String() string {
	if k == KindParse {
		return "parse"
	}
	return "read"
}

// ReadError reports a failed attribute read for one battery.
type ReadError struct {
	Kind      ErrorKind
	Battery   string
	Attribute string
	Path      string
	Err       error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Kind, e.Battery, e.Attribute, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
