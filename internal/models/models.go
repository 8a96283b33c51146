// package models defines the data model for the now-playing client
package models

import (
	"time"
)

// Decision is the explicit authentication decision of a session.
//
// It starts as [DecisionUnknown] until a login or logout has ever happened, and is restored from storage at startup.
type Decision int

const (
	DecisionUnknown Decision = iota
	DecisionAuthenticated
	DecisionUnauthenticated
)

func (d Decision) String() string {
	switch d {
	case DecisionAuthenticated:
		return "authenticated"
	case DecisionUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// AuthSession is the token triple. Empty strings and the zero time stand for null.
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// HasAccessToken reports whether an access token is present.
func (s AuthSession) HasAccessToken() bool {
	return s.AccessToken != ""
}

// Valid reports whether the access token and expiry are both set or both null.
func (s AuthSession) Valid() bool {
	return (s.AccessToken == "") == s.ExpiresAt.IsZero()
}

// FreshAt reports whether the access token is usable at now, keeping margin before the real expiry.
func (s AuthSession) FreshAt(now time.Time, margin time.Duration) bool {
	return s.HasAccessToken() && s.ExpiresAt.After(now.Add(margin))
}

// PersistedSession is the durable form of the session, one record per namespace.
type PersistedSession struct {
	Namespace    string    `json:"namespace"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	HasDecided   bool      `json:"has_decided"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session returns the token triple held by the record.
func (p PersistedSession) Session() AuthSession {
	return AuthSession{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, ExpiresAt: p.ExpiresAt}
}

// PKCEChallenge pairs a code verifier with its S256 challenge.
type PKCEChallenge struct {
	Verifier  string
	Challenge string
}

// TokenResult is a decoded token endpoint response.
//
// ExpiresAt is derived from ExpiresIn once, when the response is received.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    time.Duration
	ExpiresAt    time.Time
}

// TrackRef is the subset of a track the consumers display.
type TrackRef struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	URI        string   `json:"uri"`
	ImageURL   string   `json:"image_url,omitempty"`
	DurationMS int      `json:"duration_ms"`
}

// PlaybackSnapshot is an immutable read of the player. Track is nil when nothing is playing.
type PlaybackSnapshot struct {
	Track      *TrackRef `json:"track"`
	IsPlaying  bool      `json:"is_playing"`
	ProgressMS int       `json:"progress_ms"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Device is a Spotify Connect device.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	VolumePercent int    `json:"volume_percent"`
}

// DeviceState holds the device list; ActiveDeviceID is empty when no device is active.
type DeviceState struct {
	ActiveDeviceID string    `json:"active_device_id"`
	Devices        []Device  `json:"devices"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// Active returns the active device, if any.
func (d DeviceState) Active() (Device, bool) {
	for _, dev := range d.Devices {
		if dev.ID == d.ActiveDeviceID && dev.ID != "" {
			return dev, true
		}
	}
	return Device{}, false
}
