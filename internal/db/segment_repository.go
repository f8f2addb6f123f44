package db

import (
	"context"
	"fmt"
	"strings"
)

type SubtitleSegment struct {
	ID        int64
	VideoID   int64
	Order     int
	StartTime float64
	EndTime   float64
	RawText   string
	CleanText string
}

type SegmentRepository struct {
	db *DB
}

func NewSegmentRepository(db *DB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

// BulkInsert writes all segments of a video in one statement
func (r *SegmentRepository) BulkInsert(ctx context.Context, videoID int64, segments []SubtitleSegment) error {
	if len(segments) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO subtitle_segments (video_id, seg_order, start_time, end_time, raw_text, clean_text) VALUES `)

	args := make([]any, 0, len(segments)*6)
	for i, seg := range segments {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, videoID, seg.Order, seg.StartTime, seg.EndTime, seg.RawText, seg.CleanText)
	}

	_, err := r.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *SegmentRepository) FindByVideo(ctx context.Context, videoID int64) ([]SubtitleSegment, error) {
	query := `
		SELECT id, video_id, seg_order, start_time, end_time, raw_text, clean_text
		FROM subtitle_segments
		WHERE video_id = $1
		ORDER BY seg_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []SubtitleSegment
	for rows.Next() {
		var s SubtitleSegment
		if err := rows.Scan(&s.ID, &s.VideoID, &s.Order, &s.StartTime, &s.EndTime, &s.RawText, &s.CleanText); err != nil {
			return nil, err
		}
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

// DeleteByVideo clears a video's segments before a re-parse
func (r *SegmentRepository) DeleteByVideo(ctx context.Context, videoID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subtitle_segments WHERE video_id = $1`, videoID)
	return err
}
