package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"guild-sync/backend/internal/syncevent/domain"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without an underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code for err; ExitFailure when err is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// eventView is how an outbox row is printed.
type eventView struct {
	ID          string          `json:"id"`
	Domain      string          `json:"domain"`
	Tag         string          `json:"tag"`
	TeamID      string          `json:"team"`
	Attempts    int             `json:"attempts"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
	FailedAt    *time.Time      `json:"failedAt,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func viewOf(r *domain.Row, withPayload bool) eventView {
	v := eventView{
		ID:          r.ID,
		Domain:      string(r.Domain),
		Tag:         string(r.Tag),
		TeamID:      r.TeamID,
		Attempts:    r.Attempts,
		CreatedAt:   r.CreatedAt,
		ProcessedAt: r.ProcessedAt,
		FailedAt:    r.FailedAt,
	}
	if r.Error != nil {
		v.Error = *r.Error
	}
	if withPayload {
		v.Payload = r.Payload
	}
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeEvents(w io.Writer, format string, rows []*domain.Row) error {
	views := make([]eventView, 0, len(rows))
	for _, r := range rows {
		views = append(views, viewOf(r, false))
	}
	if format == "json" {
		return writeJSON(w, views)
	}
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "no events")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTAG\tTEAM\tATTEMPTS\tCREATED\tERROR")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", v.ID, v.Tag, v.TeamID, v.Attempts, v.CreatedAt.Format(time.RFC3339), v.Error)
	}
	return tw.Flush()
}

func writeEvent(w io.Writer, format string, r *domain.Row) error {
	v := viewOf(r, true)
	if format == "json" {
		return writeJSON(w, v)
	}
	state := "pending"
	switch {
	case v.FailedAt != nil:
		state = "failed (attempt cap reached)"
	case v.ProcessedAt != nil:
		state = "processed"
	case v.Error != "":
		state = "pending (retrying)"
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", v.ID)
	fmt.Fprintf(tw, "tag:\t%s\n", v.Tag)
	fmt.Fprintf(tw, "team:\t%s\n", v.TeamID)
	fmt.Fprintf(tw, "state:\t%s\n", state)
	fmt.Fprintf(tw, "attempts:\t%d\n", v.Attempts)
	if v.Error != "" {
		fmt.Fprintf(tw, "error:\t%s\n", v.Error)
	}
	fmt.Fprintf(tw, "payload:\t%s\n", string(v.Payload))
	return tw.Flush()
}
