package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/plantbutler/internal/apperr"
	"github.com/starford/plantbutler/internal/models"
)

// InsertPlant stores a plant together with its initial tasks and sets p.ID.
func (db *DB) InsertPlant(ctx context.Context, p *models.Plant) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO plants (name, photo_ref, created_at) VALUES (?, ?, ?)`,
		p.Name, p.PhotoRef, toMillis(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: insert plant: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: plant id: %w", err)
	}
	p.ID = id

	for i := range p.Tasks {
		p.Tasks[i].PlantID = id
		p.Tasks[i].Position = i
		if err := insertTask(ctx, tx, &p.Tasks[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdatePlant changes the name and photo of a plant.
func (db *DB) UpdatePlant(ctx context.Context, id int64, name, photoRef string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE plants SET name = ?, photo_ref = ? WHERE id = ?`, name, photoRef, id)
	if err != nil {
		return fmt.Errorf("store: update plant: %w", err)
	}
	return mustAffect(res)
}

// DeletePlant removes a plant; its tasks cascade.
func (db *DB) DeletePlant(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM plants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete plant: %w", err)
	}
	return mustAffect(res)
}

// GetPlant returns one plant with its tasks in position order.
func (db *DB) GetPlant(ctx context.Context, id int64) (*models.Plant, error) {
	var p models.Plant
	var created int64
	err := db.conn.QueryRowContext(ctx, `SELECT id, name, photo_ref, created_at FROM plants WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.PhotoRef, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get plant: %w", err)
	}
	p.CreatedAt = fromMillis(created)

	tasks, err := db.queryTasks(ctx, `
		SELECT id, plant_id, description, active, alarm_at, position
		FROM tasks WHERE plant_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	p.Tasks = tasks
	return &p, nil
}

// ListPlants returns every plant with its tasks, oldest first.
func (db *DB) ListPlants(ctx context.Context) ([]models.Plant, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name, photo_ref, created_at FROM plants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list plants: %w", err)
	}
	defer rows.Close()

	var plants []models.Plant
	index := make(map[int64]int)
	for rows.Next() {
		var p models.Plant
		var created int64
		if err := rows.Scan(&p.ID, &p.Name, &p.PhotoRef, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = fromMillis(created)
		p.Tasks = []models.Task{}
		index[p.ID] = len(plants)
		plants = append(plants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tasks, err := db.queryTasks(ctx, `
		SELECT id, plant_id, description, active, alarm_at, position
		FROM tasks ORDER BY plant_id, position`)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if i, ok := index[t.PlantID]; ok {
			plants[i].Tasks = append(plants[i].Tasks, t)
		}
	}
	return plants, nil
}

// InsertTask appends a task at the end of its plant's list and sets t.Position.
func (db *DB) InsertTask(ctx context.Context, t *models.Task) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM plants WHERE id = ?`, t.PlantID).Scan(&exists); err != nil {
		return fmt.Errorf("store: check plant: %w", err)
	}
	if exists == 0 {
		return apperr.ErrNotFound
	}

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM tasks WHERE plant_id = ?`, t.PlantID).Scan(&next); err != nil {
		return fmt.Errorf("store: next position: %w", err)
	}
	t.Position = next
	if err := insertTask(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit()
}

func insertTask(ctx context.Context, tx *sql.Tx, t *models.Task) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (id, plant_id, description, active, alarm_at, position)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.PlantID, t.Description, t.Active, alarmValue(t.AlarmAt), t.Position)
	if err != nil {
		return fmt.Errorf("store: insert task: %w", err)
	}
	return nil
}

// GetTask returns a single task.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	tasks, err := db.queryTasks(ctx, `
		SELECT id, plant_id, description, active, alarm_at, position
		FROM tasks WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, apperr.ErrNotFound
	}
	return &tasks[0], nil
}

// UpdateTask persists description, active flag and alarm time.
func (db *DB) UpdateTask(ctx context.Context, t models.Task) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE tasks SET description = ?, active = ?, alarm_at = ? WHERE id = ?
	`, t.Description, t.Active, alarmValue(t.AlarmAt), t.ID)
	if err != nil {
		return fmt.Errorf("store: update task: %w", err)
	}
	return mustAffect(res)
}

// DeleteTask removes a task and closes the gap in its plant's positions.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var plantID int64
	var pos int
	err = tx.QueryRowContext(ctx, `SELECT plant_id, position FROM tasks WHERE id = ?`, id).Scan(&plantID, &pos)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: find task: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete task: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET position = position - 1 WHERE plant_id = ? AND position > ?`, plantID, pos); err != nil {
		return fmt.Errorf("store: compact positions: %w", err)
	}
	return tx.Commit()
}

// MoveTask moves the task at position from to position to within a plant,
// shifting the tasks in between. Task ids are unchanged.
func (db *DB) MoveTask(ctx context.Context, plantID int64, from, to int) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `SELECT id FROM tasks WHERE plant_id = ? ORDER BY position`, plantID)
	if err != nil {
		return fmt.Errorf("store: load positions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if from < 0 || from >= len(ids) || to < 0 || to >= len(ids) {
		return fmt.Errorf("%w: position out of range", apperr.ErrInvalidArgument)
	}
	if from == to {
		return nil
	}

	moved := ids[from]
	ids = append(ids[:from], ids[from+1:]...)
	ids = append(ids[:to], append([]string{moved}, ids[to:]...)...)

	stmt, err := tx.PrepareContext(ctx, `UPDATE tasks SET position = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("store: prepare reorder: %w", err)
	}
	defer stmt.Close()
	for pos, id := range ids {
		if _, err := stmt.ExecContext(ctx, pos, id); err != nil {
			return fmt.Errorf("store: reorder: %w", err)
		}
	}
	return tx.Commit()
}

// AlarmCandidates returns every active task with an alarm time, joined with
// its plant name. Callers decide which are still in the future.
func (db *DB) AlarmCandidates(ctx context.Context) ([]models.ArmedTask, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT t.id, t.plant_id, t.description, t.active, t.alarm_at, t.position, p.name
		FROM tasks t JOIN plants p ON p.id = t.plant_id
		WHERE t.active = 1 AND t.alarm_at IS NOT NULL
		ORDER BY t.alarm_at`)
	if err != nil {
		return nil, fmt.Errorf("store: alarm candidates: %w", err)
	}
	defer rows.Close()

	var out []models.ArmedTask
	for rows.Next() {
		var at models.ArmedTask
		if err := scanTask(rows, &at.Task, &at.PlantName); err != nil {
			return nil, err
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

func (db *DB) queryTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := scanTask(rows, &t); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTask(rows *sql.Rows, t *models.Task, extra ...any) error {
	var alarm sql.NullInt64
	dest := append([]any{&t.ID, &t.PlantID, &t.Description, &t.Active, &alarm, &t.Position}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return fmt.Errorf("store: scan task: %w", err)
	}
	if alarm.Valid {
		at := fromMillis(alarm.Int64)
		t.AlarmAt = &at
	}
	return nil
}

func alarmValue(at *time.Time) any {
	if at == nil {
		return nil
	}
	return toMillis(*at)
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
