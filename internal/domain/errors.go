package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotYourTurn       = errors.New("not your turn")
	ErrIllegalAction     = errors.New("illegal action")
	ErrUnknownPlayer     = errors.New("unknown player")
	ErrHandNotInProgress = errors.New("hand is not in a betting phase")
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrGameOver          = errors.New("game over: fewer than two players have chips")
	ErrInvalidCardCount  = errors.New("hand evaluation requires 5 to 7 cards")
	ErrDuplicateCard     = errors.New("duplicate card")

	ErrInvalidStartingChips  = errors.New("starting chips must be positive")
	ErrInvalidBlindStructure = errors.New("blinds must satisfy 0 < small blind <= big blind")
	ErrDuplicatePlayer       = errors.New("duplicate player id")
	ErrEmptyPlayerID         = errors.New("player id is required")
)

// Invariant violations. Reaching any of these means engine state is corrupt.
var (
	ErrEmptyDeck         = errors.New("deck has insufficient cards")
	ErrPotMismatch       = errors.New("pot distribution does not match pot total")
	ErrNoEligibleWinner  = errors.New("pot tier has no eligible winner")
	ErrChipsNotConserved = errors.New("chip total changed during hand")
)

type IllegalReason string

const (
	ReasonNoBetToCall       IllegalReason = "no_bet_to_call"
	ReasonCannotCheck       IllegalReason = "cannot_check"
	ReasonBelowMinimumRaise IllegalReason = "below_minimum_raise"
	ReasonInsufficientChips IllegalReason = "insufficient_chips"
	ReasonBetAlreadyExists  IllegalReason = "bet_already_exists"
	ReasonInvalidAmount     IllegalReason = "invalid_amount"
)

type IllegalActionError struct {
	Action ActionType
	Reason IllegalReason
}

func (e *IllegalActionError) Error() string {
	return fmt.Sprintf("illegal %s: %s", e.Action, e.Reason)
}

func (e *IllegalActionError) Unwrap() error {
	return ErrIllegalAction
}

func NewIllegalAction(action ActionType, reason IllegalReason) error {
	return &IllegalActionError{Action: action, Reason: reason}
}

// IllegalReasonOf extracts the rejection reason, if err is an illegal action.
func IllegalReasonOf(err error) (IllegalReason, bool) {
	var illegal *IllegalActionError
	if errors.As(err, &illegal) {
		return illegal.Reason, true
	}
	return "", false
}

type InvariantError struct {
	Op  string
	Err error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in %s: %v", e.Op, e.Err)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

func NewInvariantError(op string, err error) error {
	return &InvariantError{Op: op, Err: err}
}

func IsInvariantViolation(err error) bool {
	var inv *InvariantError
	if errors.As(err, &inv) {
		return true
	}
	return errors.Is(err, ErrEmptyDeck) ||
		errors.Is(err, ErrPotMismatch) ||
		errors.Is(err, ErrNoEligibleWinner) ||
		errors.Is(err, ErrChipsNotConserved)
}
