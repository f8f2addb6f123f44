package ytdlp

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Metadata contains the information extracted for a remote video
type Metadata struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Duration         float64 `json:"duration"`
	Channel          string  `json:"channel"`
	Thumbnail        string  `json:"thumbnail"`
	WebpageURL       string  `json:"webpage_url"`
	HasSubtitles     bool    `json:"-"`
	SubtitleLanguage string  `json:"-"`
}

// Format describes one downloadable format of a video
type Format struct {
	FormatID    string `json:"formatId"`
	Ext         string `json:"ext"`
	Resolution  string `json:"resolution"`
	Quality     string `json:"quality"`
	FPS         string `json:"fps"`
	Vcodec      string `json:"vcodec"`
	Acodec      string `json:"acodec"`
	Filesize    int64  `json:"filesize"`
	FilesizeStr string `json:"filesizeStr"`
	Note        string `json:"note"`
	HasVideo    bool   `json:"hasVideo"`
	HasAudio    bool   `json:"hasAudio"`
}

// dumpOutput represents the JSON emitted by yt-dlp --dump-json
type dumpOutput struct {
	ID                string                       `json:"id"`
	Title             string                       `json:"title"`
	Description       string                       `json:"description"`
	Duration          float64                      `json:"duration"`
	Channel           string                       `json:"channel"`
	Uploader          string                       `json:"uploader"`
	Thumbnail         string                       `json:"thumbnail"`
	Thumbnails        []thumb                      `json:"thumbnails"`
	WebpageURL        string                       `json:"webpage_url"`
	Subtitles         map[string][]json.RawMessage `json:"subtitles"`
	AutomaticCaptions map[string][]json.RawMessage `json:"automatic_captions"`
	Formats           []rawFormat                  `json:"formats"`
}

type thumb struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type rawFormat struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Resolution string  `json:"resolution"`
	FormatNote string  `json:"format_note"`
	FPS        float64 `json:"fps"`
	Vcodec     string  `json:"vcodec"`
	Acodec     string  `json:"acodec"`
	Filesize   int64   `json:"filesize"`
	Format     string  `json:"format"`
}

// preferredLanguages is the probe order used when detecting which subtitle
// language a video carries. Official subtitles win over auto captions.
var preferredLanguages = []string{"en", "zh", "zh-Hans", "zh-Hant", "ja", "ko"}

func (o *dumpOutput) toMetadata() *Metadata {
	m := &Metadata{
		ID:          o.ID,
		Title:       o.Title,
		Description: o.Description,
		Duration:    o.Duration,
		Channel:     o.Channel,
		Thumbnail:   o.Thumbnail,
		WebpageURL:  o.WebpageURL,
	}

	if m.Channel == "" {
		m.Channel = o.Uploader
	}
	if m.Thumbnail == "" && len(o.Thumbnails) > 0 {
		m.Thumbnail = o.Thumbnails[len(o.Thumbnails)-1].URL
	}

	if lang := detectSubtitleLanguage(o.Subtitles, o.AutomaticCaptions); lang != "" {
		m.HasSubtitles = true
		m.SubtitleLanguage = lang
	} else {
		m.SubtitleLanguage = "en"
	}

	return m
}

// detectSubtitleLanguage picks the best available subtitle language:
// preferred languages from official subtitles first, then auto captions,
// then whatever language is available at all.
func detectSubtitleLanguage(subs, autoCaptions map[string][]json.RawMessage) string {
	for _, lang := range preferredLanguages {
		if len(subs[lang]) > 0 {
			return lang
		}
	}
	for _, lang := range preferredLanguages {
		if len(autoCaptions[lang]) > 0 {
			return lang
		}
	}
	for lang, tracks := range subs {
		if len(tracks) > 0 {
			return lang
		}
	}
	for lang, tracks := range autoCaptions {
		if len(tracks) > 0 {
			return lang
		}
	}
	return ""
}

func (r *rawFormat) toFormat() Format {
	f := Format{
		FormatID:   r.FormatID,
		Ext:        r.Ext,
		Resolution: r.Resolution,
		Quality:    r.FormatNote,
		Vcodec:     r.Vcodec,
		Acodec:     r.Acodec,
		Filesize:   r.Filesize,
		Note:       r.Format,
	}
	if f.Resolution == "" {
		f.Resolution = "N/A"
	}
	if f.Quality == "" {
		f.Quality = "unknown"
	}
	if r.FPS > 0 {
		f.FPS = strconv.FormatFloat(r.FPS, 'f', -1, 64)
	}
	f.HasVideo = f.Vcodec != "" && f.Vcodec != "none"
	f.HasAudio = f.Acodec != "" && f.Acodec != "none"
	f.FilesizeStr = formatFileSize(r.Filesize)
	return f
}

// formatFileSize renders a byte count for display
func formatFileSize(bytes int64) string {
	switch {
	case bytes <= 0:
		return "Unknown"
	case bytes < 1<<10:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1<<20:
		return fmt.Sprintf("%.1f KB", float64(bytes)/(1<<10))
	case bytes < 1<<30:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1<<20))
	default:
		return fmt.Sprintf("%.2f GB", float64(bytes)/(1<<30))
	}
}
