package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/authkit"
)

func (s *Store) Settings(ctx context.Context, userID int64) ([]authkit.Setting, error) {
	rows := []authkit.Setting{}
	err := s.db.SelectContext(ctx, &rows, s.q(`SELECT setting_key, setting_value FROM user_settings
		WHERE user_id = ? ORDER BY setting_key`), userID)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return rows, nil
}

func (s *Store) Setting(ctx context.Context, userID int64, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.q(`SELECT setting_value FROM user_settings
		WHERE user_id = ? AND setting_key = ?`), userID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", authkit.ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("setting: %w", err)
	}
	return value, nil
}

func (s *Store) PutSetting(ctx context.Context, userID int64, key, value string) error {
	_, err := s.exec(ctx, "put setting", `INSERT INTO user_settings (user_id, setting_key, setting_value)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, setting_key) DO UPDATE SET setting_value = excluded.setting_value`,
		userID, key, value)
	return err
}

func (s *Store) DeleteSetting(ctx context.Context, userID int64, key string) (int64, error) {
	return s.exec(ctx, "delete setting", `DELETE FROM user_settings WHERE user_id = ? AND setting_key = ?`, userID, key)
}

func (s *Store) DeleteSettings(ctx context.Context, userID int64) error {
	_, err := s.exec(ctx, "delete settings", `DELETE FROM user_settings WHERE user_id = ?`, userID)
	return err
}

// InsertSettings inserts every row or none.
func (s *Store) InsertSettings(ctx context.Context, userID int64, settings []authkit.Setting) error {
	if len(settings) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert settings: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, s.q(`INSERT INTO user_settings (user_id, setting_key, setting_value)
		VALUES (?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("insert settings: prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range settings {
		if _, err := stmt.ExecContext(ctx, userID, row.Key, row.Value); err != nil {
			return fmt.Errorf("insert setting %q: %w", row.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert settings: commit: %w", err)
	}
	return nil
}
