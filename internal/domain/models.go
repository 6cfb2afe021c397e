package domain

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

type State string

const (
	StateUp   State = "up"
	StateDown State = "down"
)

type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

type Method string

const (
	MethodGet    Method = "get"
	MethodPost   Method = "post"
	MethodPut    Method = "put"
	MethodDelete Method = "delete"
)

// Check is a validated check definition plus the state the worker keeps on it.
// LastChecked is a unix timestamp in milliseconds; zero means the check has
// never been evaluated.
type Check struct {
	ID             string   `json:"id"`
	UserPhone      string   `json:"userPhone"`
	Protocol       Protocol `json:"protocol"`
	URL            string   `json:"url"`
	Method         Method   `json:"method"`
	SuccessCodes   []int    `json:"successCodes"`
	TimeoutSeconds int      `json:"timeoutSeconds"`
	State          State    `json:"state"`
	LastChecked    int64    `json:"lastChecked,omitempty"`
}

// Checked reports whether the check has completed at least one evaluation.
func (c Check) Checked() bool { return c.LastChecked > 0 }

func (c Check) LastCheckedAt() time.Time {
	if !c.Checked() {
		return time.Time{}
	}
	return time.UnixMilli(c.LastChecked).UTC()
}

// Target is the probed address, e.g. "https://example.com/health?x=1".
func (c Check) Target() string { return string(c.Protocol) + "://" + c.URL }

func (c Check) Accepts(code int) bool { return slices.Contains(c.SuccessCodes, code) }

func (c Check) Timeout() time.Duration { return time.Duration(c.TimeoutSeconds) * time.Second }

// AlertMessage is the text sent to the owner when the check changes state.
func (c Check) AlertMessage() string {
	return "Alert: Your check for " + strings.ToUpper(string(c.Method)) + " " + c.Target() + " is currently " + string(c.State)
}

type ErrorKind string

const (
	ErrorNetwork ErrorKind = "network-error"
	ErrorTimeout ErrorKind = "timeout"
)

type OutcomeError struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// Outcome is the result of one probe. Exactly one of Error and ResponseCode is set.
type Outcome struct {
	Error        *OutcomeError `json:"error"`
	ResponseCode int           `json:"responseCode,omitempty"`
}

func (o Outcome) Failed() bool { return o.Error != nil }

// Kind is "none" for a received response.
func (o Outcome) Kind() string {
	if o.Error == nil {
		return "none"
	}
	return string(o.Error.Kind)
}

// LogEntry is one line of a check's append-only log stream.
type LogEntry struct {
	Check   Check   `json:"check"`
	Outcome Outcome `json:"outcome"`
	State   State   `json:"state"`
	Alert   bool    `json:"alert"`
	Time    int64   `json:"time"`
}

// Record is a persisted check document as read from a store, before validation.
type Record map[string]any

// RecordOf converts a check into the document shape the stores persist.
func RecordOf(c Check) (Record, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return r, nil
}
