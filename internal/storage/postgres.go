package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/guest-sentry/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) SaveAlert(ctx context.Context, alert *models.StaffAlert) error {
	history, err := json.Marshal(alert.EscalationHistory)
	if err != nil {
		return fmt.Errorf("error marshaling escalation history: %v", err)
	}

	query := `
		INSERT INTO staff_alerts (
			id, hotel_id, guest_id, message_id, alert_type, priority, status,
			sentiment_score, urgency_level, response_required_by, created_at,
			escalation_history, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = s.db.ExecContext(ctx, query,
		alert.ID, alert.HotelID, alert.GuestID, alert.MessageID,
		alert.AlertType, string(alert.Priority), string(alert.Status),
		alert.SentimentScore, alert.UrgencyLevel, alert.ResponseRequiredBy,
		alert.CreatedAt, history, alert.CorrelationID)
	if err != nil {
		return fmt.Errorf("error creating alert: %v", err)
	}
	return nil
}

func (s *PostgresStorage) GetAlert(ctx context.Context, id string) (*models.StaffAlert, error) {
	query := `
		SELECT id, hotel_id, guest_id, message_id, alert_type, priority, status,
		       sentiment_score, urgency_level, response_required_by, created_at,
		       acknowledged_at, acknowledged_by, resolved_at, resolved_by,
		       escalation_history, correlation_id
		FROM staff_alerts
		WHERE id = $1`

	alert, err := scanAlert(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying alert: %v", err)
	}
	return alert, nil
}

func (s *PostgresStorage) UpdateAlert(ctx context.Context, alert *models.StaffAlert) error {
	history, err := json.Marshal(alert.EscalationHistory)
	if err != nil {
		return fmt.Errorf("error marshaling escalation history: %v", err)
	}

	query := `
		UPDATE staff_alerts
		SET status = $1, urgency_level = $2, response_required_by = $3,
		    acknowledged_at = $4, acknowledged_by = $5,
		    resolved_at = $6, resolved_by = $7, escalation_history = $8
		WHERE id = $9`

	result, err := s.db.ExecContext(ctx, query,
		string(alert.Status), alert.UrgencyLevel, alert.ResponseRequiredBy,
		alert.AcknowledgedAt, alert.AcknowledgedBy,
		alert.ResolvedAt, alert.ResolvedBy, history, alert.ID)
	if err != nil {
		return fmt.Errorf("error updating alert: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %v", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("alert %s not found", alert.ID)
	}
	return nil
}

func (s *PostgresStorage) ListOverdue(ctx context.Context, now time.Time) ([]*models.StaffAlert, error) {
	query := `
		SELECT id, hotel_id, guest_id, message_id, alert_type, priority, status,
		       sentiment_score, urgency_level, response_required_by, created_at,
		       acknowledged_at, acknowledged_by, resolved_at, resolved_by,
		       escalation_history, correlation_id
		FROM staff_alerts
		WHERE status IN ('pending', 'escalated') AND response_required_by < $1
		ORDER BY response_required_by ASC`

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("error querying overdue alerts: %v", err)
	}
	defer rows.Close()

	var alerts []*models.StaffAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning alert: %v", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*models.StaffAlert, error) {
	alert := &models.StaffAlert{}
	var priority, status string
	var history []byte

	err := row.Scan(
		&alert.ID, &alert.HotelID, &alert.GuestID, &alert.MessageID,
		&alert.AlertType, &priority, &status,
		&alert.SentimentScore, &alert.UrgencyLevel, &alert.ResponseRequiredBy,
		&alert.CreatedAt, &alert.AcknowledgedAt, &alert.AcknowledgedBy,
		&alert.ResolvedAt, &alert.ResolvedBy, &history, &alert.CorrelationID)
	if err != nil {
		return nil, err
	}

	alert.Priority = models.EscalationLevel(priority)
	alert.Status = models.AlertStatus(status)
	if err := json.Unmarshal(history, &alert.EscalationHistory); err != nil {
		return nil, fmt.Errorf("error unmarshaling escalation history: %v", err)
	}
	return alert, nil
}

func (s *PostgresStorage) GetHotelThresholds(ctx context.Context, hotelID string) (*models.ThresholdPatch, error) {
	query := `SELECT config FROM hotel_thresholds WHERE hotel_id = $1`

	var config []byte
	err := s.db.QueryRowContext(ctx, query, hotelID).Scan(&config)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying hotel thresholds: %v", err)
	}

	patch := &models.ThresholdPatch{}
	if err := json.Unmarshal(config, patch); err != nil {
		return nil, fmt.Errorf("error unmarshaling hotel thresholds: %v", err)
	}
	return patch, nil
}

func (s *PostgresStorage) SaveHotelThresholds(ctx context.Context, hotelID string, patch *models.ThresholdPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	config, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("error marshaling hotel thresholds: %v", err)
	}

	query := `
		INSERT INTO hotel_thresholds (hotel_id, config, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (hotel_id) DO UPDATE SET config = $2, updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, hotelID, config); err != nil {
		return fmt.Errorf("error saving hotel thresholds: %v", err)
	}
	return nil
}

func (s *PostgresStorage) SaveClassification(ctx context.Context, msg models.GuestMessage, result models.ClassificationResult) error {
	query := `
		INSERT INTO classifications (hotel_id, guest_id, message_id, label, score, confidence, fallback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, err := s.db.ExecContext(ctx, query,
		msg.HotelID, msg.GuestID, msg.ID,
		string(result.Label), result.Score, result.Confidence, result.Fallback)
	if err != nil {
		return fmt.Errorf("error saving classification: %v", err)
	}
	return nil
}

func (s *PostgresStorage) CountRecentNegative(ctx context.Context, guestID, hotelID string, windowHours int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM classifications
		WHERE guest_id = $1 AND hotel_id = $2
		  AND label IN ('negative', 'requires_attention')
		  AND created_at > NOW() - make_interval(hours => $3)`

	var count int
	err := s.db.QueryRowContext(ctx, query, guestID, hotelID, windowHours).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting recent negative classifications: %v", err)
	}
	return count, nil
}

func (s *PostgresStorage) HistoricalScores(ctx context.Context, hotelID string, periodDays int) ([]float64, error) {
	query := `
		SELECT score
		FROM classifications
		WHERE hotel_id = $1
		  AND created_at > NOW() - make_interval(days => $2)
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, hotelID, periodDays)
	if err != nil {
		return nil, fmt.Errorf("error querying historical scores: %v", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("error scanning score: %v", err)
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
