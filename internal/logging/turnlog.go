package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-turn
// LogTurn writes one provenance row to the turn_log table.
func LogTurn(db *sql.DB, rec TurnRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO turn_log (session_id, version_id, turn, trigger_type, message, response, tier,
		   analysis_json, repair_json, supervisor_json, g_factor, status, degraded, decision, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		nullIfEmpty(rec.VersionID),
		rec.Turn,
		rec.Trigger,
		nullIfEmpty(rec.Message),
		nullIfEmpty(rec.Response),
		nullIfEmpty(rec.Tier),
		nullIfEmpty(rec.AnalysisJSON),
		nullIfEmpty(rec.RepairJSON),
		nullIfEmpty(rec.SupervisorJSON),
		rec.GFactor,
		nullIfEmpty(rec.Status),
		rec.Degraded,
		rec.Decision,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log turn: %w", err)
	}
	return nil
}

// #endregion log-turn

// #region list-turns
// ListTurns returns the most recent turn_log rows, oldest first. An empty
// sessionID lists every session; limit <= 0 returns all rows.
func ListTurns(db *sql.DB, sessionID string, limit int) ([]TurnRecord, error) {
	query := `SELECT id, session_id, version_id, turn, trigger_type, message, response, tier,
	            analysis_json, repair_json, supervisor_json, g_factor, status, degraded, decision, created_at
	          FROM turn_log`
	args := []interface{}{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var rec TurnRecord
		var versionID, message, response, tier, analysisJSON, repairJSON, supervisorJSON, status sql.NullString
		var gFactor sql.NullFloat64
		var createdStr string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &versionID, &rec.Turn, &rec.Trigger, &message, &response, &tier,
			&analysisJSON, &repairJSON, &supervisorJSON, &gFactor, &status, &rec.Degraded, &rec.Decision, &createdStr); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		rec.VersionID = versionID.String
		rec.Message = message.String
		rec.Response = response.String
		rec.Tier = tier.String
		rec.AnalysisJSON = analysisJSON.String
		rec.RepairJSON = repairJSON.String
		rec.SupervisorJSON = supervisorJSON.String
		rec.GFactor = gFactor.Float64
		rec.Status = status.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// #endregion list-turns

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
