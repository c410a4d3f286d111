package service

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/asticode/go-astisub"

	"github.com/mediaflow/api/internal/client"
	"github.com/mediaflow/api/internal/model"
)

// subtitleContentTypes maps output formats to upload content types.
var subtitleContentTypes = map[string]string{
	model.TranscribeOutputSRT: "application/x-subrip",
	model.TranscribeOutputVTT: "text/vtt",
	model.TranscribeOutputASS: "text/x-ssa",
}

// renderSubtitles writes segments in the given format, wrapping each cue's
// text at maxChars per line.
func renderSubtitles(segments []client.Segment, format string, maxChars int) ([]byte, error) {
	subs := astisub.NewSubtitles()
	subs.Metadata = &astisub.Metadata{Title: "Transcription"}

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		item := &astisub.Item{
			StartAt: secondsToDuration(seg.Start),
			EndAt:   secondsToDuration(seg.End),
		}
		for _, line := range wrapText(text, maxChars) {
			item.Lines = append(item.Lines, astisub.Line{Items: []astisub.LineItem{{Text: line}}})
		}
		subs.Items = append(subs.Items, item)
	}

	if len(subs.Items) == 0 {
		return nil, errNoSpeech
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case model.TranscribeOutputSRT:
		err = subs.WriteToSRT(&buf)
	case model.TranscribeOutputVTT:
		err = subs.WriteToWebVTT(&buf)
	case model.TranscribeOutputASS:
		err = subs.WriteToSSA(&buf)
	default:
		return nil, fmt.Errorf("unsupported subtitle format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write %s subtitles: %w", format, err)
	}
	return buf.Bytes(), nil
}

// wrapText splits text on word boundaries into lines of at most maxChars
// runes. A single word longer than maxChars gets its own line.
func wrapText(text string, maxChars int) []string {
	words := strings.Fields(text)
	if maxChars <= 0 || len(words) == 0 {
		return []string{strings.Join(words, " ")}
	}

	var (
		lines   []string
		current strings.Builder
	)
	for _, word := range words {
		if current.Len() == 0 {
			current.WriteString(word)
			continue
		}
		if len([]rune(current.String()))+1+len([]rune(word)) > maxChars {
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
			continue
		}
		current.WriteByte(' ')
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
