package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrJobAlreadyExists = errors.New("job already exists")
	ErrJobDoesntExist   = errors.New("job doesn't exist")
)

// JobAlreadyExistsError is returned by AddJob on a name collision.
type JobAlreadyExistsError struct {
	Name string
}

func (e *JobAlreadyExistsError) Error() string {
	return fmt.Sprintf("job already exists: %q", e.Name)
}

func (e *JobAlreadyExistsError) Is(target error) bool { return target == ErrJobAlreadyExists }

// JobDoesntExistError is returned by RemoveJob for an unknown name.
type JobDoesntExistError struct {
	Name string
}

func (e *JobDoesntExistError) Error() string {
	return fmt.Sprintf("job doesn't exist: %q", e.Name)
}

func (e *JobDoesntExistError) Is(target error) bool { return target == ErrJobDoesntExist }
