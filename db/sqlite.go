package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// InitDB initializes the SQLite database
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        opera TEXT NOT NULL,
        tipovuelo TEXT NOT NULL,
        mes INTEGER NOT NULL,
        predicted_label INTEGER NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50),
        accuracy REAL,
        pos_weight REAL,
        neg_weight REAL,
        data_points INTEGER,
        trained_at DATETIME
    );
    `

	_, err = database.Exec(query)
	return err
}

// PredictionRow is one served prediction, logged for auditing.
type PredictionRow struct {
	Opera          string    `json:"opera"`
	TipoVuelo      string    `json:"tipovuelo"`
	Mes            int       `json:"mes"`
	PredictedLabel int       `json:"predicted_label"`
	CreatedAt      time.Time `json:"created_at"`
}

// SavePredictions appends served predictions to the audit log.
func SavePredictions(rows []PredictionRow) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	if len(rows) == 0 {
		return nil
	}

	stmt, err := database.Prepare(`
        INSERT INTO predictions (opera, tipovuelo, mes, predicted_label, created_at)
        VALUES (?, ?, ?, ?, ?)
    `)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(row.Opera, row.TipoVuelo, row.Mes, row.PredictedLabel, row.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

// QueryPredictions returns the most recent logged predictions.
func QueryPredictions(limit int) ([]PredictionRow, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := database.Query(`
        SELECT opera, tipovuelo, mes, predicted_label, created_at
        FROM predictions
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]PredictionRow, 0)
	for rows.Next() {
		var row PredictionRow
		if err := rows.Scan(&row.Opera, &row.TipoVuelo, &row.Mes, &row.PredictedLabel, &row.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// TrainingLog is one completed training run.
type TrainingLog struct {
	ModelName  string    `json:"model_name"`
	Accuracy   float64   `json:"accuracy"`
	PosWeight  float64   `json:"pos_weight"`
	NegWeight  float64   `json:"neg_weight"`
	DataPoints int       `json:"data_points"`
	TrainedAt  time.Time `json:"trained_at"`
}

// SaveTrainingRun records a completed training run.
func SaveTrainingRun(entry TrainingLog) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	_, err := database.Exec(`
        INSERT INTO training_log (model_name, accuracy, pos_weight, neg_weight, data_points, trained_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ModelName, entry.Accuracy, entry.PosWeight, entry.NegWeight, entry.DataPoints, entry.TrainedAt)
	return err
}

// LoadTrainingLog returns the most recent training runs.
func LoadTrainingLog(limit int) ([]TrainingLog, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := database.Query(`
        SELECT model_name, accuracy, pos_weight, neg_weight, data_points, trained_at
        FROM training_log
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var entry TrainingLog
		if err := rows.Scan(&entry.ModelName, &entry.Accuracy, &entry.PosWeight, &entry.NegWeight, &entry.DataPoints, &entry.TrainedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
