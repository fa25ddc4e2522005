package migrations

import (
	"database/sql"
	"time"
)

// AutoMigrateUsers creates the users table if it does not exist. The UNIQUE
// index on email backs the application-level duplicate check: a concurrent
// writer that slips past the check fails here instead.
func AutoMigrateUsers(retries int, db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id INT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(50) NOT NULL,
			email VARCHAR(50) NOT NULL UNIQUE,
			created_date DATETIME NOT NULL
		);
	`
	_, err := db.Exec(query)
	if err != nil {
		// Retry creating the table
		for i := 0; i < retries; i++ {
			time.Sleep(1 * time.Second)
			_, err = db.Exec(query)
			if err == nil {
				break
			}
		}
	}
	return err
}
