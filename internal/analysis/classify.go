package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sells-group/market-intel/internal/model"
)

// Report is a successful analysis together with its audit trail.
type Report struct {
	InvocationID string
	PID          int
	Args         []string
	Result       *model.AnalysisResult
	Payload      json.RawMessage // engine output as emitted, surrounding whitespace trimmed
	Stderr       string
	Duration     time.Duration
}

// Classify maps the terminal state of an invocation to exactly one of a
// Report or an *Error. It is a pure function of inv. The first matching rule
// wins:
//
//  1. start failure
//  2. killed on deadline or cancellation
//  3. non-zero exit status
//  4. payload is not a JSON object (or could not be read)
//  5. payload carries an "error" field
//  6. payload violates the result contract
//
// Exit status is checked before parsing so a crashed engine is never
// reported as a decode problem, and parsing comes before the error-field
// lookup because a truncated payload cannot be searched.
func Classify(inv *Invocation) (*Report, error) {
	if inv == nil {
		return nil, &Error{Kind: KindInternal, Message: "no invocation to classify"}
	}

	if inv.StartErr != nil {
		return nil, &Error{
			Kind:    KindStartFailure,
			Message: "failed to start analysis process",
			Details: inv.StartErr.Error(),
			Err:     inv.StartErr,
		}
	}

	stdout := string(inv.Stdout)
	stderr := string(inv.Stderr)

	if inv.Interrupted != nil {
		kind, msg := KindCanceled, "analysis canceled before the engine finished"
		if errors.Is(inv.Interrupted, context.DeadlineExceeded) {
			kind, msg = KindTimeout, "engine did not finish within the allowed time"
		}
		return nil, &Error{
			Kind:    kind,
			Message: msg,
			Raw:     stdout,
			Stderr:  stderr,
			Err:     inv.Interrupted,
		}
	}

	if inv.ExitCode != 0 {
		return nil, &Error{
			Kind:    KindExitFailure,
			Message: fmt.Sprintf("engine exited with code %d", inv.ExitCode),
			Raw:     stdout,
			Stderr:  stderr,
		}
	}

	malformed := func(details string, err error) *Error {
		return &Error{
			Kind:    KindMalformed,
			Message: "invalid JSON from analysis engine",
			Details: details,
			Raw:     stdout,
			Stderr:  stderr,
			Err:     err,
		}
	}

	if inv.StreamErr != nil {
		return nil, malformed("output stream incomplete: "+inv.StreamErr.Error(), inv.StreamErr)
	}

	payload := bytes.TrimSpace(inv.Stdout)
	if len(payload) == 0 {
		return nil, malformed("engine produced no output", nil)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return nil, malformed(err.Error(), err)
	}
	if top == nil {
		return nil, malformed("payload is null", nil)
	}

	if msg, ok := embeddedError(top["error"]); ok {
		return nil, &Error{
			Kind:    KindEngineReported,
			Message: msg,
			Raw:     stdout,
			Stderr:  stderr,
		}
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, malformed(err.Error(), err)
	}
	if err := result.Validate(); err != nil {
		return nil, malformed(err.Error(), err)
	}

	return &Report{
		InvocationID: inv.ID,
		PID:          inv.PID,
		Args:         inv.Args,
		Result:       &result,
		Payload:      json.RawMessage(payload),
		Stderr:       stderr,
		Duration:     inv.Duration(),
	}, nil
}

// embeddedError extracts the engine's own error description. A missing
// field or a falsy value (null, false, 0, "") means no error. Other
// non-string values are reported verbatim.
func embeddedError(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw), true
	}
	switch x := v.(type) {
	case nil:
		return "", false
	case bool:
		if !x {
			return "", false
		}
	case float64:
		if x == 0 {
			return "", false
		}
	case string:
		return x, x != ""
	}
	return string(raw), true
}
