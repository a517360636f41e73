package service

import (
	"fmt"
	"time"

	"meshinv/internal/metrics"
)

const dateLayout = "2006-01-02"

// PhaseResult counts what one reconciliation phase did
type PhaseResult struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Unchanged   int `json:"unchanged"`
	Deactivated int `json:"deactivated"`
	Skipped     int `json:"skipped"`
	Duplicates  int `json:"duplicates"`
	Failed      int `json:"failed"`
}

// record counts one record outcome for kind
func (p *PhaseResult) record(kind, outcome string) {
	switch outcome {
	case metrics.OutcomeCreated:
		p.Created++
	case metrics.OutcomeUpdated:
		p.Updated++
	case metrics.OutcomeUnchanged:
		p.Unchanged++
	case metrics.OutcomeSkipped:
		p.Skipped++
	case metrics.OutcomeFailed:
		p.Failed++
	case outcomeDeactivated:
		p.Deactivated++
	}
	metrics.RecordsReconciledTotal.WithLabelValues(kind, outcome).Inc()
}

const outcomeDeactivated = "deactivated"

// Record kinds used for metrics and logs
const (
	kindDevice = "device"
	kindLink   = "link"
	kindLOS    = "los"
)

// statusShift describes how an upstream status change affects the abandon date
type statusShift struct {
	wasActive   bool
	wasInactive bool
	nowActive   bool
}

// apply updates abandon and returns a detail line for the change report
// plus a warning for administrators, either of which may be empty.
// lastSeen is the best known time the object was working.
func (s statusShift) apply(lastSeen *time.Time, abandon **time.Time) (detail, warning string) {
	switch {
	case s.wasActive && !s.nowActive:
		if lastSeen == nil {
			return "offline for an unknown duration, abandon date left unset", ""
		}
		t := lastSeen.UTC()
		*abandon = &t
		return fmt.Sprintf("abandon date set to %s from last seen", t.Format(dateLayout)), ""
	case s.wasInactive && s.nowActive:
		*abandon = nil
		return "abandon date cleared",
			"came back online after being marked inactive; verify it was not physically repurposed"
	}
	return "", ""
}

func deviceLockName(externalID string) string {
	return "device:" + externalID
}

func linkLockName(externalID string) string {
	return "link:" + externalID
}

func importNote(at time.Time) string {
	return fmt.Sprintf("Automatically imported from UISP on %s", at.Format(dateLayout))
}

func bulletList(lines []string) string {
	var out string
	for _, l := range lines {
		out += "\n- " + l
	}
	return out
}
