package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflow/api/internal/client"
	"github.com/mediaflow/api/internal/model"
	"github.com/mediaflow/api/internal/task"
)

type fakeTranscriber struct {
	result *client.Transcription
	err    error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req *client.TranscriptionRequest) (*client.Transcription, error) {
	return f.result, f.err
}

type fakeStore struct {
	key         string
	contentType string
	body        string
}

func (f *fakeStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.key, f.contentType, f.body = key, contentType, string(data)
	return "https://cdn.example.com/" + key, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error { return nil }

type fakeProcessor struct {
	crop    *client.CropRequest
	combine *client.CombineRequest
	err     error
}

func (f *fakeProcessor) Crop(ctx context.Context, req *client.CropRequest) (*client.MediaResponse, error) {
	f.crop = req
	return &client.MediaResponse{OutputURL: "https://cdn/" + req.OutputKey}, f.err
}

func (f *fakeProcessor) Combine(ctx context.Context, req *client.CombineRequest) (*client.MediaResponse, error) {
	f.combine = req
	return &client.MediaResponse{OutputURL: "https://cdn/" + req.OutputKey}, f.err
}

func (f *fakeProcessor) RemoveBackground(ctx context.Context, req *client.RemoveBackgroundRequest) (*client.MediaResponse, error) {
	return &client.MediaResponse{OutputURL: "https://cdn/" + req.OutputKey}, f.err
}

func (f *fakeProcessor) HealthCheck(ctx context.Context) error { return nil }

func TestNormalizeTimestamp(t *testing.T) {
	cases := map[string]string{
		"01:30":    "00:01:30",
		"00:02:45": "00:02:45",
		"1:2:3":    "01:02:03",
	}
	for in, want := range cases {
		got, err := normalizeTimestamp(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"90", "aa:bb", "00:61:00", "1:2:3:4", ""} {
		_, err := normalizeTimestamp(bad)
		assert.Error(t, err, bad)
	}
}

func TestCropDurationAndOutput(t *testing.T) {
	proc := &fakeProcessor{}
	svc := NewMediaService(proc)

	out, err := svc.Crop(context.Background(), task.Params{
		"media_url":  "https://example.com/song.wav?sig=1",
		"start_time": "01:30",
		"end_time":   "00:02:45",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, out.Status)
	require.NotNil(t, proc.crop)
	assert.Equal(t, "00:01:30", proc.crop.Start)
	assert.Equal(t, 75, proc.crop.Duration)
	assert.True(t, strings.HasSuffix(proc.crop.OutputKey, ".wav"))
}

func TestCropRejectsReversedRange(t *testing.T) {
	svc := NewMediaService(nil)

	out, err := svc.Crop(context.Background(), task.Params{
		"media_url":  "https://example.com/a.mp3",
		"start_time": "00:02:00",
		"end_time":   "00:01:00",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, out.Status)
	assert.Equal(t, "End time must be after start time", out.Payload)
}

func TestCropProcessorErrorIsFault(t *testing.T) {
	svc := NewMediaService(&fakeProcessor{err: errors.New("ffmpeg exited 1")})

	_, err := svc.Crop(context.Background(), task.Params{
		"media_url":  "https://example.com/a.mp3",
		"start_time": "00:00",
		"end_time":   "00:10",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg exited 1")
}

func TestCombinePassesURLsInOrder(t *testing.T) {
	proc := &fakeProcessor{}
	svc := NewMediaService(proc)

	out, err := svc.Combine(context.Background(), task.Params{
		"audio_urls": []any{
			map[string]any{"audio_url": "https://example.com/1.mp3"},
			map[string]any{"audio_url": "https://example.com/2.mp3"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, []string{"https://example.com/1.mp3", "https://example.com/2.mp3"}, proc.combine.InputURLs)
}

func TestRemoveBackgroundMock(t *testing.T) {
	out, err := NewMediaService(nil).RemoveBackground(context.Background(), task.Params{"media_url": "https://example.com/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, RouteRemoveBackground, out.Route)
	assert.True(t, strings.HasSuffix(out.Payload.(string), ".png"))
}

func TestTranscribePlainText(t *testing.T) {
	svc := NewTranscriptionService(&fakeTranscriber{result: &client.Transcription{Text: "hi there", Language: "en"}}, nil)

	out, err := svc.Run(context.Background(), task.Params{"media_url": "https://example.com/a.mp3"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, out.Status)
	res := out.Payload.(model.TranscribeResult)
	assert.Equal(t, "hi there", res.Text)
}

func TestTranscribeSRTUploads(t *testing.T) {
	store := &fakeStore{}
	svc := NewTranscriptionService(&fakeTranscriber{result: &client.Transcription{
		Segments: []client.Segment{{Start: 0, End: 1.25, Text: " hello world"}},
	}}, store)

	out, err := svc.Run(context.Background(), task.Params{"media_url": "https://example.com/a.mp3", "output": "srt"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.True(t, strings.HasPrefix(out.Payload.(string), "https://cdn.example.com/subtitles/"))
	assert.Equal(t, "application/x-subrip", store.contentType)
	assert.Contains(t, store.body, "00:00:00,000 --> 00:00:01,250")
	assert.Contains(t, store.body, "hello world")
}

func TestTranscribeNoSpeech(t *testing.T) {
	svc := NewTranscriptionService(&fakeTranscriber{result: &client.Transcription{}}, nil)

	out, err := svc.Run(context.Background(), task.Params{"media_url": "https://example.com/a.mp3", "output": "vtt"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, out.Status)
}

func TestTranscribeErrorIsFault(t *testing.T) {
	svc := NewTranscriptionService(&fakeTranscriber{err: errors.New("groq down")}, nil)
	_, err := svc.Run(context.Background(), task.Params{"media_url": "https://example.com/a.mp3"})
	assert.Error(t, err)
}

func TestTranscribeMockVTT(t *testing.T) {
	out, err := NewTranscriptionService(nil, nil).Run(context.Background(), task.Params{
		"media_url": "https://example.com/a.mp3",
		"output":    "vtt",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Payload.(string), "WEBVTT"))
}

func TestWrapText(t *testing.T) {
	lines := wrapText("the quick brown fox jumps over the lazy dog", 15)
	assert.Equal(t, []string{"the quick brown", "fox jumps over", "the lazy dog"}, lines)

	for _, l := range wrapText("a supercalifragilistic word", 5) {
		assert.NotEmpty(t, l)
	}
	assert.Equal(t, []string{"one line"}, wrapText("one   line", 0))
}

func TestRegisterRoutes(t *testing.T) {
	reg := task.NewRegistry()
	require.NoError(t, RegisterRoutes(reg, NewTranscriptionService(nil, nil), NewMediaService(nil)))
	assert.Len(t, reg.Routes(), 4)

	route, err := reg.Lookup(RouteCropAudio)
	require.NoError(t, err)
	assert.False(t, route.BypassQueue)
	assert.IsType(t, &model.CropRequest{}, route.NewRequest())

	assert.Error(t, RegisterRoutes(reg, NewTranscriptionService(nil, nil), NewMediaService(nil)))
}
