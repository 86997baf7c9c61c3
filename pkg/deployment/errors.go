package deployment

import "github.com/pkg/errors"

// Configuration errors surface at the earliest stage-advance that would
// require the missing field, never at construction (spec.md §7).
var (
	ErrNoCrate        = errors.New("deployment: NoCrate")
	ErrNoAgent        = errors.New("deployment: NoAgent")
	ErrNoName         = errors.New("deployment: NoName")
	ErrNoInitLabel    = errors.New("deployment: NoInitLabel")
	ErrNoInitMessage  = errors.New("deployment: NoInitMessage")
	ErrNoInitCodeId   = errors.New("deployment: NoInitCodeId")
	ErrNameAlreadyTaken = errors.New("deployment: name already registered in this deployment")
)
