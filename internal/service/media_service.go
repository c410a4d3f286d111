package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mediaflow/api/internal/client"
	"github.com/mediaflow/api/internal/model"
	"github.com/mediaflow/api/internal/task"
)

// MediaService backs the ffmpeg and background-removal routes. A nil
// processor yields mock output URLs.
type MediaService struct {
	processor client.MediaProcessor
}

func NewMediaService(processor client.MediaProcessor) *MediaService {
	return &MediaService{processor: processor}
}

// Crop handles /crop-audio.
func (s *MediaService) Crop(ctx context.Context, params task.Params) (task.Outcome, error) {
	var req model.CropRequest
	if err := params.Decode(&req); err != nil {
		return task.Outcome{}, err
	}

	start, err := normalizeTimestamp(req.StartTime)
	if err != nil {
		return task.Fail(RouteCropAudio, http.StatusBadRequest, err.Error()), nil
	}
	end, err := normalizeTimestamp(req.EndTime)
	if err != nil {
		return task.Fail(RouteCropAudio, http.StatusBadRequest, err.Error()), nil
	}

	duration := timestampSeconds(end) - timestampSeconds(start)
	if duration <= 0 {
		return task.Fail(RouteCropAudio, http.StatusBadRequest, "End time must be after start time"), nil
	}

	log.Printf("Cropping %s from %s for %ds", req.MediaURL, start, duration)

	outputKey := fmt.Sprintf("cropped/%s%s", uuid.New().String(), extensionOf(req.MediaURL, ".mp3"))
	if s.processor == nil {
		return task.OK(RouteCropAudio, mockURL(outputKey)), nil
	}

	resp, err := s.processor.Crop(ctx, &client.CropRequest{
		InputURL:  req.MediaURL,
		Start:     start,
		Duration:  duration,
		OutputKey: outputKey,
	})
	if err != nil {
		return task.Outcome{}, fmt.Errorf("audio crop failed: %w", err)
	}
	return task.OK(RouteCropAudio, resp.OutputURL), nil
}

// Combine handles /combine-audios.
func (s *MediaService) Combine(ctx context.Context, params task.Params) (task.Outcome, error) {
	var req model.CombineRequest
	if err := params.Decode(&req); err != nil {
		return task.Outcome{}, err
	}
	if len(req.AudioURLs) == 0 {
		return task.Fail(RouteCombineAudios, http.StatusBadRequest, "audio_urls must not be empty"), nil
	}

	urls := make([]string, 0, len(req.AudioURLs))
	for _, a := range req.AudioURLs {
		urls = append(urls, a.AudioURL)
	}

	log.Printf("Combining %d audio files", len(urls))

	outputKey := fmt.Sprintf("combined/%s.mp3", uuid.New().String())
	if s.processor == nil {
		return task.OK(RouteCombineAudios, mockURL(outputKey)), nil
	}

	resp, err := s.processor.Combine(ctx, &client.CombineRequest{InputURLs: urls, OutputKey: outputKey})
	if err != nil {
		return task.Outcome{}, fmt.Errorf("audio combine failed: %w", err)
	}
	return task.OK(RouteCombineAudios, resp.OutputURL), nil
}

// RemoveBackground handles /remove-background.
func (s *MediaService) RemoveBackground(ctx context.Context, params task.Params) (task.Outcome, error) {
	var req model.RemoveBackgroundRequest
	if err := params.Decode(&req); err != nil {
		return task.Outcome{}, err
	}
	if req.OutputFormat == "" {
		req.OutputFormat = model.ImageFormatPNG
	}

	log.Printf("Removing background from %s (%s)", req.MediaURL, req.OutputFormat)

	outputKey := fmt.Sprintf("nobg/%s.%s", uuid.New().String(), req.OutputFormat)
	if s.processor == nil {
		return task.OK(RouteRemoveBackground, mockURL(outputKey)), nil
	}

	resp, err := s.processor.RemoveBackground(ctx, &client.RemoveBackgroundRequest{
		InputURL:  req.MediaURL,
		Format:    req.OutputFormat,
		OutputKey: outputKey,
	})
	if err != nil {
		return task.Outcome{}, fmt.Errorf("background removal failed: %w", err)
	}
	return task.OK(RouteRemoveBackground, resp.OutputURL), nil
}

// normalizeTimestamp turns MM:SS or HH:MM:SS into HH:MM:SS.
func normalizeTimestamp(ts string) (string, error) {
	ts = strings.TrimSpace(ts)
	parts := strings.Split(ts, ":")
	if len(parts) == 2 {
		parts = append([]string{"00"}, parts...)
	}
	if len(parts) != 3 {
		return "", fmt.Errorf("Invalid time format: %q (expected HH:MM:SS or MM:SS)", ts)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || (i > 0 && n >= 60) {
			return "", fmt.Errorf("Invalid time format: %q (expected HH:MM:SS or MM:SS)", ts)
		}
		parts[i] = fmt.Sprintf("%02d", n)
	}
	return strings.Join(parts, ":"), nil
}

// timestampSeconds expects a normalized HH:MM:SS value.
func timestampSeconds(ts string) int {
	parts := strings.Split(ts, ":")
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	s, _ := strconv.Atoi(parts[2])
	return h*3600 + m*60 + s
}

func extensionOf(rawURL, fallback string) string {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if ext := path.Ext(p); ext != "" && len(ext) <= 5 {
		return ext
	}
	return fallback
}

func mockURL(key string) string {
	return "https://mock-storage.local/" + key
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
