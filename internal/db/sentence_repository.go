package db

import (
	"context"
	"fmt"
	"strings"
)

type PracticeSentence struct {
	ID         int64
	VideoID    int64
	Order      int
	StartTime  float64
	EndTime    float64
	Text       string
	Difficulty string
}

type SentenceRepository struct {
	db *DB
}

func NewSentenceRepository(db *DB) *SentenceRepository {
	return &SentenceRepository{db: db}
}

// BulkInsert writes all practice sentences of a video in one statement
func (r *SentenceRepository) BulkInsert(ctx context.Context, videoID int64, sentences []PracticeSentence) error {
	if len(sentences) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO practice_sentences (video_id, sentence_order, start_time, end_time, text, difficulty) VALUES `)

	args := make([]any, 0, len(sentences)*6)
	for i, s := range sentences {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, videoID, s.Order, s.StartTime, s.EndTime, s.Text, s.Difficulty)
	}

	_, err := r.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *SentenceRepository) FindByVideo(ctx context.Context, videoID int64) ([]PracticeSentence, error) {
	query := `
		SELECT id, video_id, sentence_order, start_time, end_time, text, difficulty
		FROM practice_sentences
		WHERE video_id = $1
		ORDER BY sentence_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sentences []PracticeSentence
	for rows.Next() {
		var s PracticeSentence
		if err := rows.Scan(&s.ID, &s.VideoID, &s.Order, &s.StartTime, &s.EndTime, &s.Text, &s.Difficulty); err != nil {
			return nil, err
		}
		sentences = append(sentences, s)
	}
	return sentences, rows.Err()
}

func (r *SentenceRepository) CountByVideo(ctx context.Context, videoID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM practice_sentences WHERE video_id = $1`, videoID,
	).Scan(&count)
	return count, err
}

// DeleteByVideo clears a video's sentences before a re-parse
func (r *SentenceRepository) DeleteByVideo(ctx context.Context, videoID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM practice_sentences WHERE video_id = $1`, videoID)
	return err
}
