// Package orchestration records bot workflow state: worker reports, the
// escalations they raise, and the read models the dashboard polls.
package orchestration

import (
	"github.com/tidwall/gjson"

	"github.com/p-blackswan/mission-control/internal/models"
)

// DefaultReason is used when a report names no error summary or reason.
const DefaultReason = "Escalation required"

// Escalates reports whether reports of eventType open an escalation.
func Escalates(eventType string) bool {
	return eventType == models.EventTaskFailed || eventType == models.EventEscalationRequired
}

// Derive decides whether a report raises an escalation and builds it. It does
// no I/O; the caller assigns the id and timestamps when persisting.
func Derive(r models.WorkerReport) (models.Escalation, bool) {
	if !Escalates(r.EventType) {
		return models.Escalation{}, false
	}

	payload := gjson.ParseBytes(r.Payload)
	if !payload.IsObject() {
		payload = gjson.Result{}
	}

	e := models.Escalation{
		TaskID:  r.TaskID,
		BotID:   r.BotID,
		Reason:  DefaultReason,
		Options: []string{},
		Status:  models.EscalationOpen,
	}
	if s := str(payload.Get("error_summary")); s != "" {
		e.Reason = s
	} else if s := str(payload.Get("reason")); s != "" {
		e.Reason = s
	}

	if opts := payload.Get("options"); opts.IsArray() {
		for _, o := range opts.Array() {
			switch o.Type {
			case gjson.String:
				e.Options = append(e.Options, o.Str)
			case gjson.Null:
			default:
				e.Options = append(e.Options, o.Raw)
			}
		}
	}

	if s := str(payload.Get("recommendation")); s != "" {
		e.Recommendation = &s
	}
	return e, true
}

func str(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}
