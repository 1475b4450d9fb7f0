package connectivity

import "fmt"

// ErrServiceNotFound is returned when Call targets a service with no route
// and no local handler.
type ErrServiceNotFound struct {
	Service string
}

func (e *ErrServiceNotFound) Error() string {
	return fmt.Sprintf("connectivity: service not routable: %s", e.Service)
}

// ErrServiceDisabled is returned for services whose route strategy is "disabled".
type ErrServiceDisabled struct {
	Service string
}

func (e *ErrServiceDisabled) Error() string {
	return fmt.Sprintf("connectivity: service disabled: %s", e.Service)
}

// ErrRemoteStatus carries a non-2xx answer from a remote endpoint.
type ErrRemoteStatus struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *ErrRemoteStatus) Error() string {
	return fmt.Sprintf("connectivity: %s answered %d: %s", e.Endpoint, e.Status, e.Body)
}

// ErrPanic wraps a recovered panic value.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("connectivity: handler panicked: %v", e.Value)
}
