package cloudy

import "context"

// TrackKind identifies the media kind of a track.
type TrackKind string

const (
	TrackKindAudio  TrackKind = "audio"
	TrackKindVideo  TrackKind = "video"
	TrackKindScreen TrackKind = "screen"
)

// AudioCaptureOptions configures microphone capture. Nil boolean fields take
// their defaults (all processing enabled).
type AudioCaptureOptions struct {
	EchoCancellation *bool
	NoiseSuppression *bool
	AutoGainControl  *bool
	SampleRateHz     int
	ChannelCount     int
}

const (
	defaultAudioSampleRateHz = 48000
	defaultAudioChannels     = 1
)

func (o AudioCaptureOptions) withDefaults() AudioCaptureOptions {
	on := true
	if o.EchoCancellation == nil {
		o.EchoCancellation = &on
	}
	if o.NoiseSuppression == nil {
		o.NoiseSuppression = &on
	}
	if o.AutoGainControl == nil {
		o.AutoGainControl = &on
	}
	if o.SampleRateHz <= 0 {
		o.SampleRateHz = defaultAudioSampleRateHz
	}
	if o.ChannelCount <= 0 {
		o.ChannelCount = defaultAudioChannels
	}
	return o
}

// VideoCaptureOptions configures camera capture.
type VideoCaptureOptions struct {
	Width     int
	Height    int
	FrameRate int
}

func (o VideoCaptureOptions) withDefaults() VideoCaptureOptions {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	if o.FrameRate <= 0 {
		o.FrameRate = 30
	}
	return o
}

// ScreenShareOptions configures screen capture. Screen share defaults favor
// resolution over frame rate.
type ScreenShareOptions struct {
	Width     int
	Height    int
	FrameRate int
}

func (o ScreenShareOptions) withDefaults() ScreenShareOptions {
	if o.Width <= 0 {
		o.Width = 1920
	}
	if o.Height <= 0 {
		o.Height = 1080
	}
	if o.FrameRate <= 0 {
		o.FrameRate = 15
	}
	return o
}

// LocalTrack is a published local media track owned by the RoomClient.
type LocalTrack interface {
	ID() string
	Kind() TrackKind
	Close() error
}

// MediaProvider acquires local capture devices. Implementations wrap whatever
// capture backend is available (OS capture APIs, a test double, a file
// source). Acquisition failures should be returned as-is; the RoomClient
// wraps them as media acquisition errors.
type MediaProvider interface {
	OpenAudioTrack(ctx context.Context, opts AudioCaptureOptions) (LocalTrack, error)
	OpenVideoTrack(ctx context.Context, opts VideoCaptureOptions) (LocalTrack, error)
	OpenScreenTrack(ctx context.Context, opts ScreenShareOptions) (LocalTrack, error)
}

// RemoteTrack describes a track published by a remote participant.
type RemoteTrack struct {
	ID          string
	Kind        TrackKind
	Participant Participant
}

// AudioSink renders remote audio tracks. The RoomClient attaches the AI
// participant's audio track to the configured sink as soon as it is
// subscribed and detaches it when the track ends.
type AudioSink interface {
	Attach(track RemoteTrack) error
	Detach(trackID string)
}

// noopSink is used when no sink is configured.
type noopSink struct{}

func (noopSink) Attach(RemoteTrack) error { return nil }
func (noopSink) Detach(string)            {}
