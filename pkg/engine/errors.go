package engine

import (
	"fmt"
	"time"
)

// InsufficientDataError is returned when a series is too short for the
// requested computation. True range needs two bars, ATR needs period+1.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d bars, need at least %d", e.Have, e.Need)
}

// InvalidParameterError is returned when a caller-supplied parameter is
// out of range or refers to something that does not exist.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

// ConfigurationError is returned when a trade type template is internally
// inconsistent, such as a sell ladder that could exceed the full position.
type ConfigurationError struct {
	TradeType string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("trade type %q misconfigured: %s", e.TradeType, e.Reason)
}

// EntryNotFoundError is returned when no bar matches the requested entry
// date exactly.
type EntryNotFoundError struct {
	EntryDate time.Time
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("no bar found for entry date %s", e.EntryDate.Format("2006-01-02"))
}
