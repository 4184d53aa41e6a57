package market

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a simulator failure. Callers switch on it to decide
// whether to retry, adjust the request or abort.
type Kind string

const (
	KindInvalidContractSymbol Kind = "InvalidContractSymbol"
	KindUnknownContract       Kind = "UnknownContract"
	KindNoDataForSymbol       Kind = "NoDataForSymbol"
	KindEndOfData             Kind = "EndOfData"
	KindLimitNotMarketable    Kind = "LimitNotMarketable"
	KindNoLiquidity           Kind = "NoLiquidity"
	KindInsufficientFunds     Kind = "InsufficientFunds"
	KindConvergence           Kind = "ConvergenceError"
	KindInvalidState          Kind = "InvalidState"
	KindInvalidOrder          Kind = "InvalidOrder"
	KindInvalidInput          Kind = "InvalidInput"
)

// Sentinels for errors.Is. Any *Error of the same Kind matches.
var (
	ErrInvalidContractSymbol = &Error{Kind: KindInvalidContractSymbol}
	ErrUnknownContract       = &Error{Kind: KindUnknownContract}
	ErrNoDataForSymbol       = &Error{Kind: KindNoDataForSymbol}
	ErrEndOfData             = &Error{Kind: KindEndOfData}
	ErrLimitNotMarketable    = &Error{Kind: KindLimitNotMarketable}
	ErrNoLiquidity           = &Error{Kind: KindNoLiquidity}
	ErrInsufficientFunds     = &Error{Kind: KindInsufficientFunds}
	ErrConvergence           = &Error{Kind: KindConvergence}
	ErrInvalidState          = &Error{Kind: KindInvalidState}
	ErrInvalidOrder          = &Error{Kind: KindInvalidOrder}
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
)

// Error is the structured failure returned by every simulator operation.
// Contract, Time, Requested and Available are set when they apply.
type Error struct {
	Kind      Kind
	Msg       string
	Contract  string
	Time      time.Time
	Requested float64
	Available float64
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Contract != "" {
		fmt.Fprintf(&b, " (contract %s)", e.Contract)
	}
	if !e.Time.IsZero() {
		fmt.Fprintf(&b, " (at %s)", e.Time.Format(time.RFC3339))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so errors.Is(err, market.ErrEndOfData) works for any
// EndOfData failure regardless of its context fields.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WithContract returns a copy of e carrying the contract symbol.
func (e *Error) WithContract(symbol string) *Error {
	c := *e
	c.Contract = symbol
	return &c
}

// WithTime returns a copy of e carrying the timestamp.
func (e *Error) WithTime(t time.Time) *Error {
	c := *e
	c.Time = t
	return &c
}

// WithQuantities returns a copy of e carrying requested vs available amounts.
func (e *Error) WithQuantities(requested, available float64) *Error {
	c := *e
	c.Requested = requested
	c.Available = available
	return &c
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
