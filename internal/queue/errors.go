package queue

import "errors"

// ErrJobAlreadyActive is returned when a new pipeline start is
// requested for a job key that already has a non-terminal job.
var ErrJobAlreadyActive = errors.New("job already active")
