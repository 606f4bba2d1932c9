package sqlstore

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS titles (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		title        TEXT NOT NULL,
		instructions TEXT NOT NULL DEFAULT '',
		created_at   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_titles_user ON titles(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS reference_images (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		title_id   TEXT,
		image_data TEXT NOT NULL,
		is_global  INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reference_images_title ON reference_images(title_id)`,
	`CREATE TABLE IF NOT EXISTS ideas (
		id          TEXT PRIMARY KEY,
		title_id    TEXT NOT NULL,
		summary     TEXT NOT NULL,
		full_prompt TEXT NOT NULL,
		created_at  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ideas_title_created ON ideas(title_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS paintings (
		id                 TEXT PRIMARY KEY,
		title_id           TEXT NOT NULL,
		idea_id            TEXT NOT NULL UNIQUE,
		status             TEXT NOT NULL DEFAULT 'pending',
		image_url          TEXT,
		error_message      TEXT,
		used_reference_ids TEXT NOT NULL DEFAULT '[]',
		created_at         INTEGER NOT NULL,
		updated_at         INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_paintings_title ON paintings(title_id, created_at)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            CHAR(36) PRIMARY KEY,
		username      VARCHAR(64) NOT NULL UNIQUE,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at    BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS titles (
		id           CHAR(36) PRIMARY KEY,
		user_id      CHAR(36) NOT NULL,
		title        VARCHAR(512) NOT NULL,
		instructions TEXT NOT NULL,
		created_at   BIGINT NOT NULL,
		INDEX idx_titles_user (user_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS reference_images (
		id         CHAR(36) PRIMARY KEY,
		user_id    CHAR(36) NOT NULL,
		title_id   CHAR(36) NULL,
		image_data LONGTEXT NOT NULL,
		is_global  TINYINT(1) NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		INDEX idx_reference_images_title (title_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ideas (
		id          CHAR(36) PRIMARY KEY,
		title_id    CHAR(36) NOT NULL,
		summary     TEXT NOT NULL,
		full_prompt TEXT NOT NULL,
		created_at  BIGINT NOT NULL,
		INDEX idx_ideas_title_created (title_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS paintings (
		id                 CHAR(36) PRIMARY KEY,
		title_id           CHAR(36) NOT NULL,
		idea_id            CHAR(36) NOT NULL UNIQUE,
		status             VARCHAR(16) NOT NULL DEFAULT 'pending',
		image_url          TEXT NULL,
		error_message      TEXT NULL,
		used_reference_ids TEXT NOT NULL,
		created_at         BIGINT NOT NULL,
		updated_at         BIGINT NOT NULL,
		INDEX idx_paintings_title (title_id, created_at)
	)`,
}
