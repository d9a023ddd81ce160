package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apiconnect "github.com/osa030/pano360/internal/api/connect"
	"github.com/osa030/pano360/internal/app/notification"
)

func TestPrintStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  *apiconnect.StatusResponse
		want    []string
		notWant []string
	}{
		{
			name:    "idle",
			status:  &apiconnect.StatusResponse{Phase: "idle", Index: -1, Playlist: "tour", Clips: 3},
			want:    []string{"Playlist: tour (3 clips)", "Phase: idle", "No run active"},
			notWant: []string{"Session ID"},
		},
		{
			name: "live",
			status: &apiconnect.StatusResponse{
				Running:    true,
				Phase:      "live",
				SessionID:  "s1",
				Index:      2,
				ClipID:     "city",
				PositionMs: 2500,
				Paused:     true,
			},
			want: []string{"Session ID: s1", "Clip ID: city", "Index: 2", "Position: 2.5 seconds", "Paused: true"},
		},
		{
			name:   "preparing",
			status: &apiconnect.StatusResponse{Running: true, Phase: "preparing", SessionID: "s1", Index: -1},
			want:   []string{"No clip currently live"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printStatus(&buf, tt.status)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, buf.String(), w)
			}
		})
	}
}

func TestPrintNotification(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 45, 123_000_000, time.UTC)

	var buf bytes.Buffer
	printNotification(&buf, &notification.Notification{
		SequenceNo: 7,
		Type:       "command_rejected",
		Command:    "pause",
		Phase:      "awaiting_swap",
		Error:      "a swap is in progress",
		At:         at,
	})

	assert.Equal(t,
		"[Sequence: 7] 12:30:45.123 command_rejected command=pause phase=awaiting_swap error=\"a swap is in progress\"\n",
		buf.String())
}
