package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/mediaflow/api/internal/client"
	"github.com/mediaflow/api/internal/model"
	"github.com/mediaflow/api/internal/task"
)

var errNoSpeech = errors.New("no speech detected in media")

// TranscriptionService backs /transcribe-media.
type TranscriptionService struct {
	transcriber client.Transcriber
	store       client.ObjectStore
}

// NewTranscriptionService wires the service. A nil transcriber yields mock
// transcripts; a nil store returns subtitle content inline.
func NewTranscriptionService(transcriber client.Transcriber, store client.ObjectStore) *TranscriptionService {
	return &TranscriptionService{transcriber: transcriber, store: store}
}

func (s *TranscriptionService) Run(ctx context.Context, params task.Params) (task.Outcome, error) {
	var req model.TranscribeRequest
	if err := params.Decode(&req); err != nil {
		return task.Outcome{}, err
	}
	if req.Output == "" {
		req.Output = model.TranscribeOutputTranscript
	}
	if req.MaxChars <= 0 {
		req.MaxChars = model.DefaultMaxChars
	}

	log.Printf("Transcribing %s as %s", req.MediaURL, req.Output)

	result, err := s.transcribe(ctx, &req)
	if err != nil {
		return task.Outcome{}, fmt.Errorf("transcription failed: %w", err)
	}

	if req.Output == model.TranscribeOutputTranscript {
		return task.OK(RouteTranscribeMedia, model.TranscribeResult{
			Text:     result.Text,
			Language: result.Language,
			Duration: result.Duration,
		}), nil
	}

	content, err := renderSubtitles(result.Segments, req.Output, req.MaxChars)
	if errors.Is(err, errNoSpeech) {
		return task.Fail(RouteTranscribeMedia, http.StatusUnprocessableEntity, "No speech detected in media"), nil
	}
	if err != nil {
		return task.Outcome{}, err
	}

	if s.store == nil {
		return task.OK(RouteTranscribeMedia, string(content)), nil
	}

	key := fmt.Sprintf("subtitles/%s.%s", uuid.New().String(), req.Output)
	url, err := s.store.Upload(ctx, key, bytesReader(content), subtitleContentTypes[req.Output])
	if err != nil {
		return task.Outcome{}, err
	}
	return task.OK(RouteTranscribeMedia, url), nil
}

func (s *TranscriptionService) transcribe(ctx context.Context, req *model.TranscribeRequest) (*client.Transcription, error) {
	if s.transcriber == nil {
		return mockTranscription(), nil
	}
	return s.transcriber.Transcribe(ctx, &client.TranscriptionRequest{
		MediaURL: req.MediaURL,
		Language: req.Language,
	})
}

func mockTranscription() *client.Transcription {
	return &client.Transcription{
		Text:     "This is a mock transcription. Configure GROQ_API_KEY for real results.",
		Language: "en",
		Duration: 6,
		Segments: []client.Segment{
			{ID: 0, Start: 0, End: 2.5, Text: " This is a mock transcription."},
			{ID: 1, Start: 2.5, End: 6, Text: " Configure GROQ_API_KEY for real results."},
		},
	}
}
