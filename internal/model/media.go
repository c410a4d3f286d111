package model

// Output formats for /transcribe-media
const (
	TranscribeOutputTranscript = "transcript"
	TranscribeOutputSRT        = "srt"
	TranscribeOutputVTT        = "vtt"
	TranscribeOutputASS        = "ass"
)

const DefaultMaxChars = 56

// TranscribeRequest is the body of POST /transcribe-media
type TranscribeRequest struct {
	MediaURL   string `json:"media_url" validate:"required,url"`
	Output     string `json:"output" validate:"omitempty,oneof=transcript srt vtt ass"`
	MaxChars   int    `json:"max_chars" validate:"omitempty,min=1,max=500"`
	Language   string `json:"language,omitempty" validate:"omitempty,min=2,max=8"`
	WebhookURL string `json:"webhook_url,omitempty" validate:"omitempty,url"`
	ID         string `json:"id,omitempty"`
}

// TranscribeResult is the payload of a plain transcript
type TranscribeResult struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// CropRequest is the body of POST /crop-audio
type CropRequest struct {
	MediaURL   string `json:"media_url" validate:"required,url"`
	StartTime  string `json:"start_time" validate:"required"`
	EndTime    string `json:"end_time" validate:"required"`
	WebhookURL string `json:"webhook_url,omitempty" validate:"omitempty,url"`
	ID         string `json:"id,omitempty"`
}

// AudioURL is one entry of CombineRequest.AudioURLs
type AudioURL struct {
	AudioURL string `json:"audio_url" validate:"required,url"`
}

// CombineRequest is the body of POST /combine-audios
type CombineRequest struct {
	AudioURLs  []AudioURL `json:"audio_urls" validate:"required,min=1,dive"`
	WebhookURL string     `json:"webhook_url,omitempty" validate:"omitempty,url"`
	ID         string     `json:"id,omitempty"`
}

// Image formats for /remove-background
const (
	ImageFormatPNG  = "png"
	ImageFormatJPEG = "jpeg"
	ImageFormatWEBP = "webp"
)

// RemoveBackgroundRequest is the body of POST /remove-background
type RemoveBackgroundRequest struct {
	MediaURL     string `json:"media_url" validate:"required,url"`
	OutputFormat string `json:"output_format" validate:"omitempty,oneof=png jpeg webp"`
	WebhookURL   string `json:"webhook_url,omitempty" validate:"omitempty,url"`
	ID           string `json:"id,omitempty"`
}
