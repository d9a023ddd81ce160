package connect

import (
	"github.com/osa030/pano360/internal/app/playback"
	"github.com/osa030/pano360/internal/domain/playlist"
)

// ServiceName is the fully-qualified name of the control service.
const ServiceName = "pano360.v1.ControlService"

// Procedure paths
const (
	StartProcedure    = "/" + ServiceName + "/Start"
	StopProcedure     = "/" + ServiceName + "/Stop"
	PauseProcedure    = "/" + ServiceName + "/Pause"
	ResumeProcedure   = "/" + ServiceName + "/Resume"
	NextProcedure     = "/" + ServiceName + "/Next"
	PreviousProcedure = "/" + ServiceName + "/Previous"
	JumpProcedure     = "/" + ServiceName + "/Jump"
	StatusProcedure   = "/" + ServiceName + "/Status"
	WatchProcedure    = "/" + ServiceName + "/Watch"
)

// StartRequest starts a run over [StartIndex, EndIndex). A nil EndIndex
// plays to the end of the playlist.
type StartRequest struct {
	StartIndex int  `json:"start_index"`
	EndIndex   *int `json:"end_index,omitempty"`
}

func (r *StartRequest) endIndex() int {
	if r.EndIndex == nil {
		return playlist.EndOfList
	}
	return *r.EndIndex
}

// JumpRequest jumps to Index.
type JumpRequest struct {
	Index int `json:"index"`
}

// Empty is the request of commands without arguments.
type Empty struct{}

// WatchRequest subscribes to playback notifications.
type WatchRequest struct{}

// StatusResponse reports the playback status. Every command responds with
// the status after it was applied.
type StatusResponse struct {
	Running           bool   `json:"running"`
	Phase             string `json:"phase"`
	SessionID         string `json:"session_id,omitempty"`
	Index             int    `json:"index"`
	ClipID            string `json:"clip_id,omitempty"`
	PositionMs        int64  `json:"position_ms"`
	Paused            bool   `json:"paused"`
	TransitionRunning bool   `json:"transition_running"`
	Loop              bool   `json:"loop"`
	Playlist          string `json:"playlist,omitempty"`
	Clips             int    `json:"clips"`
}

func newStatusResponse(st playback.Status, pl *playlist.Playlist) *StatusResponse {
	resp := &StatusResponse{
		Running:           st.Running,
		Phase:             st.Phase.String(),
		SessionID:         st.SessionID,
		Index:             st.Index,
		ClipID:            st.ClipID,
		PositionMs:        st.Position.Milliseconds(),
		Paused:            st.Paused,
		TransitionRunning: st.TransitionRunning,
		Loop:              st.Loop,
	}
	if pl != nil {
		resp.Playlist = pl.Name
		resp.Clips = pl.Len()
	}
	return resp
}
