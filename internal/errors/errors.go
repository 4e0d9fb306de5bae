// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrCardNotFound     = errors.New("battle card not found")
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrAlertNotFound    = errors.New("alert not found")
	ErrTerminalState    = errors.New("card is in a terminal state")
	ErrNotStarted       = errors.New("monitor not started")
	ErrAlreadyStarted   = errors.New("monitor already started")
	ErrFeedDisconnected = errors.New("price feed disconnected")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDatabaseError    = errors.New("database error")
	ErrAgentUnavailable = errors.New("AI agent not configured")
)

// TickError reports a malformed tick that was dropped.
type TickError struct {
	Symbol string
	Price  float64
	Reason string
}

func (e *TickError) Error() string {
	return fmt.Sprintf("malformed tick [%s] price=%v: %s", e.Symbol, e.Price, e.Reason)
}

// NewTickError creates a new TickError.
func NewTickError(symbol string, price float64, reason string) *TickError {
	return &TickError{Symbol: symbol, Price: price, Reason: reason}
}

// InvariantError reports an internal consistency defect: the cascade
// resolver produced more than one active scenario, or the engine tried
// to transition a terminal card. It is surfaced to the operator, never
// to the end user as a trading signal.
type InvariantError struct {
	CardID    string
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation [%s] card %s: %s", e.Invariant, e.CardID, e.Detail)
}

// NewInvariantError creates a new InvariantError.
func NewInvariantError(cardID, invariant, detail string) *InvariantError {
	return &InvariantError{CardID: cardID, Invariant: invariant, Detail: detail}
}

// PersistenceError reports a write-back failure after retries were
// exhausted. In-memory state stays authoritative when this occurs.
type PersistenceError struct {
	Op       string
	CardID   string
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error [%s] card %s after %d attempts: %v", e.Op, e.CardID, e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new PersistenceError.
func NewPersistenceError(op, cardID string, attempts int, err error) *PersistenceError {
	return &PersistenceError{Op: op, CardID: cardID, Attempts: attempts, Err: err}
}

// FeedError represents an error from the price feed collaborator.
type FeedError struct {
	Op      string
	Symbol  string
	Message string
	Err     error
}

func (e *FeedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed error [%s] %s: %s: %v", e.Op, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("feed error [%s] %s: %s", e.Op, e.Symbol, e.Message)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// NewFeedError creates a new FeedError.
func NewFeedError(op, symbol, message string, err error) *FeedError {
	return &FeedError{Op: op, Symbol: symbol, Message: message, Err: err}
}

// AgentError represents an error from the AI reassessment collaborator.
type AgentError struct {
	Operation string
	Err       error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error [%s]: %v", e.Operation, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError creates a new AgentError.
func NewAgentError(operation string, err error) *AgentError {
	return &AgentError{Operation: operation, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
