// Spotify Web API calls used by the player commands and pollers
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified artist object.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified album object.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// Ref converts the track to the model the pollers publish.
func (t SpotifyTrack) Ref() *models.TrackRef {
	ref := &models.TrackRef{
		ID:         t.ID,
		Name:       t.Name,
		Album:      t.Album.Name,
		URI:        t.URI,
		DurationMS: t.DurationMS,
	}
	for _, a := range t.Artists {
		ref.Artists = append(ref.Artists, a.Name)
	}
	if len(t.Album.Images) > 0 {
		ref.ImageURL = t.Album.Images[0].URL
	}
	return ref
}

// SpotifyCurrentlyPlaying is the currently-playing response. Item is nil for ads and between tracks.
type SpotifyCurrentlyPlaying struct {
	IsPlaying            bool          `json:"is_playing"`
	ProgressMS           int           `json:"progress_ms"`
	CurrentlyPlayingType string        `json:"currently_playing_type"`
	Item                 *SpotifyTrack `json:"item"`
}

// SpotifyDevice represents a Spotify Connect device. ID is null for some restricted devices.
type SpotifyDevice struct {
	ID            *string `json:"id"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	IsActive      bool    `json:"is_active"`
	VolumePercent *int    `json:"volume_percent"`
}

// Caller performs authenticated API calls. [*Client] implements it.
type Caller interface {
	Call(ctx context.Context, path string, opts CallOptions) (*Response, error)
}

// SpotifyService wraps the player and profile endpoints.
type SpotifyService struct {
	client Caller
	now    func() time.Time
}

// NewSpotifyService creates a [SpotifyService] on top of client.
func NewSpotifyService(client Caller) *SpotifyService {
	return &SpotifyService{client: client, now: time.Now}
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	resp, err := s.client.Call(ctx, "/me", CallOptions{})
	if err != nil {
		return nil, err
	}

	var user SpotifyUser
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentlyPlaying reads the player. A 204 yields a snapshot with no track.
func (s *SpotifyService) CurrentlyPlaying(ctx context.Context) (models.PlaybackSnapshot, error) {
	resp, err := s.client.Call(ctx, "/me/player/currently-playing", CallOptions{})
	if err != nil {
		return models.PlaybackSnapshot{}, err
	}

	snap := models.PlaybackSnapshot{FetchedAt: s.now()}
	if resp.Empty() {
		return snap, nil
	}

	var payload SpotifyCurrentlyPlaying
	if err := resp.Decode(&payload); err != nil {
		return models.PlaybackSnapshot{}, err
	}

	snap.IsPlaying = payload.IsPlaying
	snap.ProgressMS = payload.ProgressMS
	if payload.Item != nil {
		snap.Track = payload.Item.Ref()
	}
	return snap, nil
}

// Devices lists the user's Connect devices and picks the active one.
func (s *SpotifyService) Devices(ctx context.Context) (models.DeviceState, error) {
	resp, err := s.client.Call(ctx, "/me/player/devices", CallOptions{})
	if err != nil {
		return models.DeviceState{}, err
	}

	var payload struct {
		Devices []SpotifyDevice `json:"devices"`
	}
	if err := resp.Decode(&payload); err != nil {
		return models.DeviceState{}, err
	}

	state := models.DeviceState{FetchedAt: s.now(), Devices: make([]models.Device, 0, len(payload.Devices))}
	for _, d := range payload.Devices {
		dev := models.Device{Name: d.Name, Type: d.Type, IsActive: d.IsActive}
		if d.ID != nil {
			dev.ID = *d.ID
		}
		if d.VolumePercent != nil {
			dev.VolumePercent = *d.VolumePercent
		}
		if dev.IsActive && dev.ID != "" && state.ActiveDeviceID == "" {
			state.ActiveDeviceID = dev.ID
		}
		state.Devices = append(state.Devices, dev)
	}
	return state, nil
}

// Play resumes playback. An empty deviceID targets the active device.
func (s *SpotifyService) Play(ctx context.Context, deviceID string) error {
	return s.control(ctx, http.MethodPut, "/me/player/play", deviceID)
}

// Pause pauses playback.
func (s *SpotifyService) Pause(ctx context.Context, deviceID string) error {
	return s.control(ctx, http.MethodPut, "/me/player/pause", deviceID)
}

// Next skips to the next track.
func (s *SpotifyService) Next(ctx context.Context, deviceID string) error {
	return s.control(ctx, http.MethodPost, "/me/player/next", deviceID)
}

// Previous skips to the previous track.
func (s *SpotifyService) Previous(ctx context.Context, deviceID string) error {
	return s.control(ctx, http.MethodPost, "/me/player/previous", deviceID)
}

func (s *SpotifyService) control(ctx context.Context, method, path, deviceID string) error {
	opts := CallOptions{Method: method}
	if deviceID != "" {
		opts.Query = url.Values{"device_id": {deviceID}}
	}

	_, err := s.client.Call(ctx, path, opts)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Kind == KindUpstream && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %w", shared.ErrNoActiveDevice, err)
	}
	return err
}
