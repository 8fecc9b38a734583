package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/AlfredBerg/rod-route-tracker/internal/track"
	_ "github.com/mattn/go-sqlite3"
)

type SqliteOutput struct {
	Database string
	db       *sql.DB

	dbLock sync.Mutex
}

func (o *SqliteOutput) Init() error {
	if o.Database == "" {
		return fmt.Errorf("sqlite database file not set")
	}

	db, err := sql.Open("sqlite3", o.Database)
	if err != nil {
		return err
	}

	createMeasurements := "CREATE TABLE IF NOT EXISTS measurements (id integer not null primary key, run_id text not null, captured_at text not null, url text, duration text, distance text, screenshot text);"
	_, err = db.Exec(createMeasurements)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create table %q: %w", createMeasurements, err)
	}
	o.db = db
	return nil
}

func (o *SqliteOutput) Cleanup() error {
	if o.db == nil {
		return nil
	}
	err := o.db.Close()
	o.db = nil
	return err
}

// The go sqlite driver does not allow for concurrent writes, HandleMeasurement serializes them
func (o *SqliteOutput) HandleMeasurement(m track.Measurement) error {
	if o.db == nil {
		return fmt.Errorf("sqlite output %s used before Init", o.Database)
	}

	insertMeasurement := "INSERT into measurements(run_id, captured_at, url, duration, distance, screenshot) values(?, ?, ?, ?, ?, ?);"
	o.dbLock.Lock()
	_, err := o.db.Exec(insertMeasurement, m.RunID, track.FormatTimestamp(m.CapturedAt), m.URL, m.Duration, m.Distance, m.Screenshot)
	o.dbLock.Unlock()
	if err != nil {
		return fmt.Errorf("failed to insert measurement %s: %w", m.RunID, err)
	}
	return nil
}
