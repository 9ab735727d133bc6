package statusserver

import (
	"time"

	"github.com/kingrea/lab-assistant/internal/engine"
)

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// snapshotResponse is the /snapshot payload. Timers that do not apply to the
// current step are null rather than zero.
type snapshotResponse struct {
	Procedure        string           `json:"procedure,omitempty"`
	Loaded           bool             `json:"loaded"`
	StepIndex        int              `json:"step_index"`
	StepCount        int              `json:"step_count"`
	Title            string           `json:"title"`
	Notes            string           `json:"notes,omitempty"`
	AutoAdvance      bool             `json:"auto_advance"`
	PrimaryRemaining *int64           `json:"primary_remaining_seconds"`
	Substep          *substepResponse `json:"substep"`
	Paused           bool             `json:"paused"`
	Finished         bool             `json:"finished"`
	ServerTime       time.Time        `json:"server_time"`
}

type substepResponse struct {
	Title     string `json:"title,omitempty"`
	Phase     string `json:"phase"`
	Remaining int64  `json:"remaining_seconds"`
}

func newSnapshotResponse(name string, state engine.State, now time.Time) snapshotResponse {
	resp := snapshotResponse{
		Procedure:   name,
		Loaded:      state.Loaded,
		StepIndex:   state.Index,
		StepCount:   state.StepCount,
		Title:       state.Step.Title,
		Notes:       state.Step.Notes,
		AutoAdvance: state.Step.AutoAdvance,
		Paused:      state.Paused,
		Finished:    state.Finished(),
		ServerTime:  now.UTC(),
	}
	if state.Primary != nil {
		secs := int64(*state.Primary / time.Second)
		resp.PrimaryRemaining = &secs
	}
	if state.Substep.Active() {
		resp.Substep = &substepResponse{
			Title:     state.Substep.Title,
			Phase:     state.Substep.Phase.String(),
			Remaining: int64(state.Substep.Remaining / time.Second),
		}
	}
	return resp
}
