package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

func New(host, port, user, password, dbname string) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// download workers and request handlers share this pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		username VARCHAR(50) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash VARCHAR(255) NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		revoked BOOLEAN DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);
	CREATE INDEX IF NOT EXISTS idx_refresh_tokens_token_hash ON refresh_tokens(token_hash);

	CREATE TABLE IF NOT EXISTS videos (
		id BIGSERIAL PRIMARY KEY,
		external_id VARCHAR(16) UNIQUE NOT NULL,
		source_url TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		duration DOUBLE PRECISION NOT NULL DEFAULT 0,
		channel TEXT NOT NULL DEFAULT '',
		thumbnail TEXT NOT NULL DEFAULT '',
		has_subtitles BOOLEAN NOT NULL DEFAULT FALSE,
		subtitle_language VARCHAR(16) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL DEFAULT 'added',
		progress_message TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		sentence_count INT NOT NULL DEFAULT 0,
		created_by UUID REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		completed_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_videos_created_by ON videos(created_by);
	CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(status);

	CREATE TABLE IF NOT EXISTS subtitle_segments (
		id BIGSERIAL PRIMARY KEY,
		video_id BIGINT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		seg_order INT NOT NULL,
		start_time DOUBLE PRECISION NOT NULL,
		end_time DOUBLE PRECISION NOT NULL,
		raw_text TEXT NOT NULL DEFAULT '',
		clean_text TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_subtitle_segments_video_id ON subtitle_segments(video_id);

	CREATE TABLE IF NOT EXISTS practice_sentences (
		id BIGSERIAL PRIMARY KEY,
		video_id BIGINT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		sentence_order INT NOT NULL,
		start_time DOUBLE PRECISION NOT NULL,
		end_time DOUBLE PRECISION NOT NULL,
		text TEXT NOT NULL,
		difficulty VARCHAR(8) NOT NULL DEFAULT 'medium'
	);

	CREATE INDEX IF NOT EXISTS idx_practice_sentences_video_id ON practice_sentences(video_id);

	CREATE TABLE IF NOT EXISTS download_tasks (
		id UUID PRIMARY KEY,
		video_id BIGINT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		download_type VARCHAR(8) NOT NULL DEFAULT 'video',
		quality VARCHAR(8) NOT NULL DEFAULT '',
		format_id VARCHAR(32) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL DEFAULT 'queued',
		progress INT NOT NULL DEFAULT 0,
		speed VARCHAR(32) NOT NULL DEFAULT '',
		eta VARCHAR(16) NOT NULL DEFAULT '',
		total_size VARCHAR(32) NOT NULL DEFAULT '',
		output_path TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_by UUID REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		started_at TIMESTAMP WITH TIME ZONE,
		completed_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_download_tasks_video_id ON download_tasks(video_id);
	CREATE INDEX IF NOT EXISTS idx_download_tasks_created_by ON download_tasks(created_by);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_download_tasks_one_success
		ON download_tasks(video_id, download_type) WHERE status = 'success';

	CREATE TABLE IF NOT EXISTS study_notes (
		id BIGSERIAL PRIMARY KEY,
		external_id VARCHAR(16) NOT NULL,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_study_notes_user_video ON study_notes(user_id, external_id);

	CREATE TABLE IF NOT EXISTS assets (
		id BIGSERIAL PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name VARCHAR(100) NOT NULL,
		amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		currency VARCHAR(8) NOT NULL DEFAULT 'CNY',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_assets_user_id ON assets(user_id);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
