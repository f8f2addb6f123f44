package ytdlp

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	forbiddenChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	multiSpace     = regexp.MustCompile(`\s+`)
	youtubeIDRe    = regexp.MustCompile(`(?:v=|youtu\.be/|/shorts/|/embed/)([A-Za-z0-9_-]{11})`)
)

// SanitizeFilename makes a video title safe to use as a file name.
// Forbidden characters become underscores, control characters are removed,
// runs of whitespace collapse to one space, and the result is capped at
// 200 characters. An empty result falls back to a timestamped name.
func SanitizeFilename(name string) string {
	name = forbiddenChars.ReplaceAllString(name, "_")

	var b strings.Builder
	for _, r := range name {
		if r >= 0x20 && r != 0x7f {
			b.WriteRune(r)
		}
	}
	name = multiSpace.ReplaceAllString(b.String(), " ")
	name = strings.TrimSpace(name)

	if len(name) > 200 {
		runes := []rune(name)
		if len(runes) > 200 {
			runes = runes[:200]
		}
		name = strings.TrimSpace(string(runes))
	}

	if name == "" {
		return fmt.Sprintf("video_%d", time.Now().Unix())
	}
	return name
}

// ExtractVideoID pulls the 11-character video identifier out of a YouTube
// URL, or returns empty if the URL is not recognized.
func ExtractVideoID(sourceURL string) string {
	if m := youtubeIDRe.FindStringSubmatch(sourceURL); len(m) == 2 {
		return m[1]
	}
	return ""
}

// FindSubtitleFile locates the subtitle file written for a video. The tool
// names files in several shapes depending on track type, so each is tried
// in order of specificity. When language is empty only the id-based shapes
// are considered.
func FindSubtitleFile(dir, videoID, language string) string {
	candidates := []string{}
	if language != "" {
		candidates = append(candidates,
			filepath.Join(dir, videoID+"."+language+".vtt"),
		)
		// auto captions for zh sometimes land as zh-Hans/zh-Hant
		if base := strings.SplitN(language, "-", 2)[0]; base != language {
			candidates = append(candidates, filepath.Join(dir, videoID+"."+base+".vtt"))
		}
	}
	candidates = append(candidates, filepath.Join(dir, videoID+".vtt"))

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}

	matches, _ := filepath.Glob(filepath.Join(dir, videoID+".*.vtt"))
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}

// FindDownloadedFile locates the media file produced for a title. An exact
// sanitized-title match wins; otherwise the newest file whose name starts
// with the sanitized title is returned.
func FindDownloadedFile(dir, title string) string {
	sanitized := SanitizeFilename(title)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var newest string
	var newestMod time.Time

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		base := strings.TrimSuffix(name, filepath.Ext(name))

		if base == sanitized {
			return filepath.Join(dir, name)
		}
		if strings.HasPrefix(base, sanitized) {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(newestMod) {
				newestMod = info.ModTime()
				newest = filepath.Join(dir, name)
			}
		}
	}
	return newest
}
