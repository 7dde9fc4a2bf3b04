package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ai_analysis (
  id               CHAR(36)     NOT NULL PRIMARY KEY,
  patient_id       BIGINT       NOT NULL,
  analysis_type    VARCHAR(50)  NOT NULL,
  result           TEXT         NOT NULL,
  confidence_score DOUBLE       NOT NULL,
  risk_level       VARCHAR(20)  NOT NULL,
  recommendations  TEXT         NOT NULL,
  image_filename   VARCHAR(255) NOT NULL,
  image_type       VARCHAR(20)  NOT NULL,
  image_url        VARCHAR(1024) NULL,
  analyzed_at      DATETIME(6)  NOT NULL,
  analyzed_by      BIGINT       NOT NULL,
  KEY idx_ai_analysis_patient (patient_id, analyzed_at),
  KEY idx_ai_analysis_doctor (analyzed_by, analyzed_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS chat_conversation (
  id         CHAR(36)     NOT NULL PRIMARY KEY,
  user_id    BIGINT       NOT NULL,
  role       VARCHAR(20)  NOT NULL,
  content    MEDIUMTEXT   NOT NULL,
  is_file    BOOLEAN      NOT NULL DEFAULT FALSE,
  file_name  VARCHAR(255) NULL,
  created_at DATETIME(6)  NOT NULL,
  KEY idx_chat_conversation_user (user_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
