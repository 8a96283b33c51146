// package formatter renders playback, device and session state as text, CSV or JSON for the CLI
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
)

// FormatDuration formats milliseconds as m:ss, or h:mm:ss from one hour up. Negative values clamp to zero.
func FormatDuration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatProgress renders "position / length" for the current track, or an empty string when nothing is playing.
func FormatProgress(snap models.PlaybackSnapshot) string {
	if snap.Track == nil {
		return ""
	}
	pos := min(snap.ProgressMS, snap.Track.DurationMS)
	return fmt.Sprintf("%s / %s", FormatDuration(pos), FormatDuration(snap.Track.DurationMS))
}

// Artists joins a track's artist names.
func Artists(t *models.TrackRef) string {
	if t == nil {
		return ""
	}
	return strings.Join(t.Artists, ", ")
}

// NowPlayingText renders a snapshot for the terminal
func NowPlayingText(snap models.PlaybackSnapshot) string {
	if snap.Track == nil {
		if snap.IsPlaying {
			return "Something is playing that is not a track\n"
		}
		return "Nothing is playing\n"
	}

	var buf bytes.Buffer
	state := "Paused"
	if snap.IsPlaying {
		state = "Playing"
	}

	fmt.Fprintf(&buf, "%s: %s\n", state, snap.Track.Name)
	if artists := Artists(snap.Track); artists != "" {
		fmt.Fprintf(&buf, "Artist: %s\n", artists)
	}
	if snap.Track.Album != "" {
		fmt.Fprintf(&buf, "Album: %s\n", snap.Track.Album)
	}
	fmt.Fprintf(&buf, "Progress: %s\n", FormatProgress(snap))
	return buf.String()
}

// DevicesText renders the device list as an aligned table, marking the active device with an asterisk.
func DevicesText(state models.DeviceState) string {
	if len(state.Devices) == 0 {
		return "No devices found\n"
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tNAME\tTYPE\tVOLUME\tID")
	for _, d := range state.Devices {
		marker := ""
		if d.ID != "" && d.ID == state.ActiveDeviceID {
			marker = "*"
		}
		id := d.ID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\n", marker, d.Name, d.Type, d.VolumePercent, id)
	}
	w.Flush()
	return buf.String()
}

// DevicesCSV converts the device list to CSV with columns: ID, Name, Type, Active, Volume
func DevicesCSV(state models.DeviceState) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Name", "Type", "Active", "Volume"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, d := range state.Devices {
		record := []string{
			d.ID,
			d.Name,
			d.Type,
			strconv.FormatBool(d.ID != "" && d.ID == state.ActiveDeviceID),
			strconv.Itoa(d.VolumePercent),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// SessionStatus is the printable view of the session. Tokens are never included.
type SessionStatus struct {
	Decision        string `json:"decision"`
	Authenticated   bool   `json:"authenticated"`
	HasRefreshToken bool   `json:"has_refresh_token"`
	ExpiresAt       string `json:"expires_at,omitempty"`
	ExpiresIn       string `json:"expires_in,omitempty"`
	Backend         string `json:"backend"`
}

// NewSessionStatus builds a [SessionStatus] as of now.
func NewSessionStatus(d models.Decision, sess models.AuthSession, backend string, now time.Time) SessionStatus {
	st := SessionStatus{
		Decision:        d.String(),
		Authenticated:   d == models.DecisionAuthenticated && sess.FreshAt(now, 0),
		HasRefreshToken: sess.RefreshToken != "",
		Backend:         backend,
	}
	if !sess.ExpiresAt.IsZero() {
		st.ExpiresAt = sess.ExpiresAt.Format(time.RFC3339)
		if left := sess.ExpiresAt.Sub(now); left > 0 {
			st.ExpiresIn = left.Round(time.Second).String()
		} else {
			st.ExpiresIn = "expired"
		}
	}
	return st
}

// Text renders the status as key/value lines.
func (s SessionStatus) Text() string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 1, ' ', 0)
	fmt.Fprintf(w, "Decision:\t%s\n", s.Decision)
	fmt.Fprintf(w, "Authenticated:\t%t\n", s.Authenticated)
	fmt.Fprintf(w, "Refresh token:\t%t\n", s.HasRefreshToken)
	if s.ExpiresAt != "" {
		fmt.Fprintf(w, "Expires:\t%s (%s)\n", s.ExpiresAt, s.ExpiresIn)
	}
	fmt.Fprintf(w, "Storage:\t%s\n", s.Backend)
	w.Flush()
	return buf.String()
}

// ToJSON marshals v with two-space indentation and a trailing newline.
func ToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}
