package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ai_analysis (
  id               UUID             PRIMARY KEY,
  patient_id       BIGINT           NOT NULL,
  analysis_type    VARCHAR(50)      NOT NULL,
  result           TEXT             NOT NULL,
  confidence_score DOUBLE PRECISION NOT NULL,
  risk_level       VARCHAR(20)      NOT NULL,
  recommendations  TEXT             NOT NULL,
  image_filename   VARCHAR(255)     NOT NULL,
  image_type       VARCHAR(20)      NOT NULL,
  image_url        TEXT,
  analyzed_at      TIMESTAMPTZ      NOT NULL,
  analyzed_by      BIGINT           NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_analysis_patient ON ai_analysis (patient_id, analyzed_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_analysis_doctor ON ai_analysis (analyzed_by, analyzed_at DESC)`,
	`CREATE TABLE IF NOT EXISTS chat_conversation (
  id         UUID         PRIMARY KEY,
  user_id    BIGINT       NOT NULL,
  role       VARCHAR(20)  NOT NULL,
  content    TEXT         NOT NULL,
  is_file    BOOLEAN      NOT NULL DEFAULT FALSE,
  file_name  VARCHAR(255),
  created_at TIMESTAMPTZ  NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_conversation_user ON chat_conversation (user_id, created_at DESC)`,
}

// EnsureSchema creates tables and indexes when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
