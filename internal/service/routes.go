package service

import (
	"github.com/mediaflow/api/internal/model"
	"github.com/mediaflow/api/internal/task"
)

// Route names, as reported in envelopes.
const (
	RouteTranscribeMedia  = "/transcribe-media"
	RouteCropAudio        = "/crop-audio"
	RouteCombineAudios    = "/combine-audios"
	RouteRemoveBackground = "/remove-background"
)

// RegisterRoutes binds every media route to its task.
func RegisterRoutes(reg *task.Registry, transcription *TranscriptionService, media *MediaService) error {
	routes := []task.Route{
		{
			Name:       RouteTranscribeMedia,
			Run:        transcription.Run,
			NewRequest: func() any { return &model.TranscribeRequest{} },
		},
		{
			Name:       RouteCropAudio,
			Run:        media.Crop,
			NewRequest: func() any { return &model.CropRequest{} },
		},
		{
			Name:       RouteCombineAudios,
			Run:        media.Combine,
			NewRequest: func() any { return &model.CombineRequest{} },
		},
		{
			Name:       RouteRemoveBackground,
			Run:        media.RemoveBackground,
			NewRequest: func() any { return &model.RemoveBackgroundRequest{} },
		},
	}

	for _, r := range routes {
		if err := reg.Register(r); err != nil {
			return err
		}
	}
	return nil
}
