package cloudy

import (
	"context"

	"github.com/cloudy-ai/cloudy/pkg/gateway/protocol"
)

// StartAudioCapture acquires the local microphone track and publishes it to
// the room. The session must be connected; no device acquisition is attempted
// otherwise. Calling it while a microphone track is already active returns
// the existing track.
func (c *RoomClient) StartAudioCapture(ctx context.Context, opts AudioCaptureOptions) (LocalTrack, error) {
	track, err := c.startCapture(ctx, TrackKindAudio, func(ctx context.Context, provider MediaProvider) (LocalTrack, error) {
		return provider.OpenAudioTrack(ctx, opts.withDefaults())
	})
	if err != nil {
		return nil, err
	}
	c.setActivity(ActivityListening)
	return track, nil
}

// StopAudioCapture releases the microphone track and unpublishes it. It is a
// no-op when no microphone track is active.
func (c *RoomClient) StopAudioCapture() {
	if c.stopCapture(TrackKindAudio) {
		c.mu.Lock()
		if c.activity == ActivityListening {
			c.activity = ActivityNone
		}
		c.mu.Unlock()
	}
}

// StartVideoCapture acquires the local camera track and publishes it.
func (c *RoomClient) StartVideoCapture(ctx context.Context, opts VideoCaptureOptions) (LocalTrack, error) {
	return c.startCapture(ctx, TrackKindVideo, func(ctx context.Context, provider MediaProvider) (LocalTrack, error) {
		return provider.OpenVideoTrack(ctx, opts.withDefaults())
	})
}

// StopVideoCapture releases the camera track and unpublishes it.
func (c *RoomClient) StopVideoCapture() {
	c.stopCapture(TrackKindVideo)
}

// StartScreenShare acquires a screen-capture track and publishes it. The
// screen-share-started callback fires on success.
func (c *RoomClient) StartScreenShare(ctx context.Context, opts ScreenShareOptions) (LocalTrack, error) {
	track, err := c.startCapture(ctx, TrackKindScreen, func(ctx context.Context, provider MediaProvider) (LocalTrack, error) {
		return provider.OpenScreenTrack(ctx, opts.withDefaults())
	})
	if err != nil {
		return nil, err
	}
	if cb := c.snapshotCallbacks().OnScreenShareStarted; cb != nil {
		cb(track)
	}
	return track, nil
}

// StopScreenShare releases the screen-capture track and unpublishes it. The
// screen-share-stopped callback fires when a track was actually released.
func (c *RoomClient) StopScreenShare() {
	if c.stopCapture(TrackKindScreen) {
		if cb := c.snapshotCallbacks().OnScreenShareStopped; cb != nil {
			cb()
		}
	}
}

type openTrackFunc func(ctx context.Context, provider MediaProvider) (LocalTrack, error)

func (c *RoomClient) startCapture(ctx context.Context, kind TrackKind, open openTrackFunc) (LocalTrack, error) {
	operation := captureOperation(kind)

	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return nil, NewNotConnectedError(operation)
	}
	if existing := c.trackHandle(kind); existing != nil {
		c.mu.Unlock()
		return existing, nil
	}
	provider := c.cfg.MediaProvider
	c.mu.Unlock()

	if provider == nil {
		return nil, NewMediaAcquisitionError("no media provider configured", nil)
	}

	track, err := open(ctx, provider)
	if err != nil {
		mediaErr := NewMediaAcquisitionError(operation+" device acquisition failed", err)
		if cb := c.snapshotCallbacks().OnError; cb != nil {
			cb(mediaErr)
		}
		return nil, mediaErr
	}

	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		_ = track.Close()
		return nil, NewNotConnectedError(operation)
	}
	c.setTrackHandle(kind, track)
	c.mu.Unlock()

	publish := protocol.ClientPublishTrack{
		Type:  "publish_track",
		Track: protocol.TrackInfo{ID: track.ID(), Kind: string(kind)},
	}
	if err := c.writeJSON(publish); err != nil {
		c.logger.Warn("publishing local track", "kind", kind, "error", err)
	}
	return track, nil
}

// stopCapture releases the named track. Unpublish is fire-and-forget: a
// failed unpublish is logged, not retried. Reports whether a track was
// actually released.
func (c *RoomClient) stopCapture(kind TrackKind) bool {
	c.mu.Lock()
	track := c.trackHandle(kind)
	c.setTrackHandle(kind, nil)
	c.mu.Unlock()
	if track == nil {
		return false
	}

	if err := track.Close(); err != nil {
		c.logger.Warn("closing local track", "kind", kind, "error", err)
	}
	unpublish := protocol.ClientUnpublishTrack{Type: "unpublish_track", TrackID: track.ID()}
	if err := c.writeJSON(unpublish); err != nil {
		c.logger.Warn("unpublishing local track", "kind", kind, "error", err)
	}
	return true
}

// trackHandle and setTrackHandle require c.mu to be held.
func (c *RoomClient) trackHandle(kind TrackKind) LocalTrack {
	switch kind {
	case TrackKindAudio:
		return c.audioTrack
	case TrackKindVideo:
		return c.videoTrack
	case TrackKindScreen:
		return c.screenTrack
	}
	return nil
}

func (c *RoomClient) setTrackHandle(kind TrackKind, track LocalTrack) {
	switch kind {
	case TrackKindAudio:
		c.audioTrack = track
	case TrackKindVideo:
		c.videoTrack = track
	case TrackKindScreen:
		c.screenTrack = track
	}
}

func captureOperation(kind TrackKind) string {
	switch kind {
	case TrackKindAudio:
		return "StartAudioCapture"
	case TrackKindVideo:
		return "StartVideoCapture"
	case TrackKindScreen:
		return "StartScreenShare"
	}
	return "StartCapture"
}
