package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"codesync/pkg/types"

	dbconfig "codesync/pkg/database"
)

var (
	ErrManagerClosed = errors.New("database manager is closed")
	ErrWriteTimeout  = errors.New("write operation timeout")
	ErrInvalidRecord = errors.New("execution record requires a room id")
)

const (
	defaultRetryDelay  = 5 * time.Second
	defaultWriteBuffer = 100 // TECHNICAL: Buffer for write operations prevents blocking
)

// Manager implements interfaces.ExecutionLog on top of sqlite
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation // TECHNICAL: Single-writer pattern for SQLite
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex // TECHNICAL: Protect closed status
	retryDelay   time.Duration
}

// writeOperation represents a database write operation
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the audit database and applies pending migrations
func NewManager(config *dbconfig.Config) (*Manager, error) {
	db, err := dbconfig.Open(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// ARCHITECTURAL DISCOVERY: The schema ships inside the binary, so a fresh
	// data directory is usable without any out-of-band setup
	migrations := dbconfig.NewMigrationManager(db)
	if err := migrations.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err := migrations.ValidateSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, defaultWriteBuffer),
		shutdown:     make(chan struct{}),
		retryDelay:   defaultRetryDelay,
	}

	// ARCHITECTURAL DISCOVERY: Single-writer goroutine prevents SQLite write contention
	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			// FUNCTIONAL DISCOVERY: A failed write is retried exactly once
			err := op.operation(m.db)
			if err != nil {
				log.Printf("Database write failed, retrying in %v: %v", m.retryDelay, err)
				time.Sleep(m.retryDelay)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("Database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			log.Println("Database write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion
func (m *Manager) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return ErrWriteTimeout
	case <-m.shutdown:
		return ErrManagerClosed
	}

	// TECHNICAL DISCOVERY: A queued operation may never run once shutdown begins
	select {
	case err := <-result:
		return err
	case <-m.shutdown:
		return ErrManagerClosed
	}
}

// RecordExecution appends one execution to the audit log
func (m *Manager) RecordExecution(ctx context.Context, record *types.ExecutionRecord) error {
	if record == nil || record.RoomID == "" {
		return ErrInvalidRecord
	}

	createdAt := record.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	durationMS := record.DurationMS
	if durationMS < 0 {
		durationMS = 0
	}

	// TECHNICAL DISCOVERY: A nil ErrorText is stored as NULL so a clean run and
	// a run that printed an empty error stay distinguishable
	var errorText sql.NullString
	if record.Result.ErrorText != nil {
		errorText = sql.NullString{String: *record.Result.ErrorText, Valid: true}
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		query := `
			INSERT INTO executions (id, room_id, file_id, file_name, language, requester_name, stdout_text, error_text, duration_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			record.ID,
			record.RoomID,
			record.FileID,
			record.FileName,
			record.Language,
			record.RequesterName,
			record.Result.StdoutText,
			errorText,
			durationMS,
			createdAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert execution: %w", err)
		}
		return nil
	})
}

// RecentExecutions returns up to limit records of a room, newest first
func (m *Manager) RecentExecutions(ctx context.Context, roomID string, limit int) ([]*types.ExecutionRecord, error) {
	if limit <= 0 {
		return []*types.ExecutionRecord{}, nil
	}

	// ARCHITECTURAL DISCOVERY: Read operations can be concurrent - no need for writeChannel
	query := `
		SELECT id, room_id, file_id, file_name, language, requester_name, stdout_text, error_text, duration_ms, created_at
		FROM executions
		WHERE room_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := m.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*types.ExecutionRecord, 0, limit)
	for rows.Next() {
		var record types.ExecutionRecord
		var errorText sql.NullString

		err := rows.Scan(
			&record.ID,
			&record.RoomID,
			&record.FileID,
			&record.FileName,
			&record.Language,
			&record.RequesterName,
			&record.Result.StdoutText,
			&errorText,
			&record.DurationMS,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}

		if errorText.Valid {
			text := errorText.String
			record.Result.ErrorText = &text
		}
		records = append(records, &record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution rows: %w", err)
	}

	return records, nil
}

// HealthCheck validates database connectivity
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var count int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM executions LIMIT 1").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}

	return nil
}

// Close shuts down the database manager
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	// ARCHITECTURAL DISCOVERY: Graceful shutdown requires careful goroutine coordination
	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
