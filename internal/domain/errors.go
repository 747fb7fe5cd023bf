package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a task id is absent from the task store.
	ErrNotFound = errors.New("not found")

	// ErrPrecondition is the parent of lifecycle violations.
	ErrPrecondition = errors.New("precondition violated")

	// ErrJobOutstanding is returned by submit while a job record exists.
	ErrJobOutstanding = fmt.Errorf("%w: batch job already outstanding", ErrPrecondition)

	// ErrNoJob is returned by poll when no job record exists.
	ErrNoJob = fmt.Errorf("%w: no batch job submitted", ErrPrecondition)

	// ErrCorruptState is returned when a persisted document cannot be decoded or validated.
	ErrCorruptState = errors.New("corrupt persisted state")

	// ErrCorruptPayload is returned when a batch result payload line cannot be decoded.
	ErrCorruptPayload = errors.New("corrupt result payload")

	// ErrTransient marks remote failures the operator may retry by re-running.
	ErrTransient = errors.New("transient remote failure")
)
