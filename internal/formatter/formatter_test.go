package formatter

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
)

func testSnapshot(playing bool) models.PlaybackSnapshot {
	return models.PlaybackSnapshot{
		IsPlaying:  playing,
		ProgressMS: 83_000,
		Track: &models.TrackRef{
			ID:         "track-1",
			Name:       "Windowlicker",
			Artists:    []string{"Aphex Twin", "Someone Else"},
			Album:      "Windowlicker",
			DurationMS: 366_000,
		},
	}
}

func testDevices() models.DeviceState {
	return models.DeviceState{
		ActiveDeviceID: "dev-2",
		Devices: []models.Device{
			{ID: "dev-1", Name: "Laptop", Type: "Computer", VolumePercent: 40},
			{ID: "dev-2", Name: "Kitchen", Type: "Speaker", IsActive: true, VolumePercent: 70},
			{Name: "Restricted", Type: "TV"},
		},
	}
}

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		ms   int
		want string
	}{
		{0, "0:00"},
		{999, "0:00"},
		{1000, "0:01"},
		{83_000, "1:23"},
		{366_000, "6:06"},
		{3_600_000, "1:00:00"},
		{3_725_000, "1:02:05"},
		{-5000, "0:00"},
	}

	for _, tt := range tc {
		if got := FormatDuration(tt.ms); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestNowPlaying(t *testing.T) {
	t.Run("FormatProgress", func(t *testing.T) {
		if got := FormatProgress(testSnapshot(true)); got != "1:23 / 6:06" {
			t.Errorf("unexpected progress %q", got)
		}

		overrun := testSnapshot(true)
		overrun.ProgressMS = 400_000
		if got := FormatProgress(overrun); got != "6:06 / 6:06" {
			t.Errorf("progress should clamp to the track length, got %q", got)
		}

		if got := FormatProgress(models.PlaybackSnapshot{}); got != "" {
			t.Errorf("expected empty progress, got %q", got)
		}
	})

	t.Run("playing", func(t *testing.T) {
		output := NowPlayingText(testSnapshot(true))

		for _, want := range []string{
			"Playing: Windowlicker",
			"Artist: Aphex Twin, Someone Else",
			"Album: Windowlicker",
			"Progress: 1:23 / 6:06",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("paused", func(t *testing.T) {
		if output := NowPlayingText(testSnapshot(false)); !strings.HasPrefix(output, "Paused: ") {
			t.Errorf("expected paused state, got: %s", output)
		}
	})

	t.Run("nothing playing", func(t *testing.T) {
		if output := NowPlayingText(models.PlaybackSnapshot{}); output != "Nothing is playing\n" {
			t.Errorf("unexpected output %q", output)
		}
	})

	t.Run("non-track item", func(t *testing.T) {
		output := NowPlayingText(models.PlaybackSnapshot{IsPlaying: true})
		if !strings.Contains(output, "not a track") {
			t.Errorf("unexpected output %q", output)
		}
	})
}

func TestDevices(t *testing.T) {
	t.Run("DevicesText", func(t *testing.T) {
		output := DevicesText(testDevices())
		lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected header and 3 rows, got %d: %s", len(lines), output)
		}
		if !strings.Contains(lines[0], "NAME") || !strings.Contains(lines[0], "VOLUME") {
			t.Errorf("missing header, got %q", lines[0])
		}
		if !strings.HasPrefix(lines[2], "*") || !strings.Contains(lines[2], "Kitchen") {
			t.Errorf("active device should be marked, got %q", lines[2])
		}
		if strings.HasPrefix(lines[1], "*") {
			t.Errorf("inactive device should not be marked, got %q", lines[1])
		}
		if !strings.HasSuffix(lines[3], "-") {
			t.Errorf("missing id should render as a dash, got %q", lines[3])
		}
	})

	t.Run("DevicesText empty", func(t *testing.T) {
		if output := DevicesText(models.DeviceState{}); output != "No devices found\n" {
			t.Errorf("unexpected output %q", output)
		}
	})

	t.Run("DevicesCSV", func(t *testing.T) {
		data, err := DevicesCSV(testDevices())
		if err != nil {
			t.Fatalf("DevicesCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != 4 {
			t.Fatalf("expected 4 records, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "ID,Name,Type,Active,Volume" {
			t.Errorf("unexpected headers %v", records[0])
		}
		if strings.Join(records[2], ",") != "dev-2,Kitchen,Speaker,true,70" {
			t.Errorf("unexpected active row %v", records[2])
		}
		if records[3][3] != "false" {
			t.Errorf("device without id must not be active, got %v", records[3])
		}
	})
}

func TestSessionStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("authenticated", func(t *testing.T) {
		sess := models.AuthSession{AccessToken: "secret-access", RefreshToken: "secret-refresh", ExpiresAt: now.Add(30 * time.Minute)}
		st := NewSessionStatus(models.DecisionAuthenticated, sess, "sqlite", now)

		if !st.Authenticated || !st.HasRefreshToken {
			t.Errorf("unexpected status %+v", st)
		}
		if st.ExpiresIn != "30m0s" {
			t.Errorf("unexpected expires_in %q", st.ExpiresIn)
		}

		text := st.Text()
		if !strings.Contains(text, "authenticated") || !strings.Contains(text, "sqlite") {
			t.Errorf("unexpected text: %s", text)
		}

		data, err := ToJSON(st)
		if err != nil {
			t.Fatalf("ToJSON failed: %v", err)
		}
		if strings.Contains(string(data), "secret") {
			t.Errorf("tokens must not be printed: %s", data)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded["decision"] != "authenticated" {
			t.Errorf("unexpected decision %v", decoded["decision"])
		}
	})

	t.Run("expired", func(t *testing.T) {
		sess := models.AuthSession{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Add(-time.Minute)}
		st := NewSessionStatus(models.DecisionAuthenticated, sess, "keyring", now)
		if st.Authenticated || st.ExpiresIn != "expired" {
			t.Errorf("unexpected status %+v", st)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		st := NewSessionStatus(models.DecisionUnknown, models.AuthSession{}, "sqlite", now)
		if st.Decision != "unknown" || st.Authenticated || st.ExpiresAt != "" {
			t.Errorf("unexpected status %+v", st)
		}
		if strings.Contains(st.Text(), "Expires") {
			t.Errorf("no expiry line expected: %s", st.Text())
		}
	})
}
