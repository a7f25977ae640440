package main

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"stellar-hierarchy/hierarchy"
)

// ErrNoSnapshot is returned when the database holds no registry yet
var ErrNoSnapshot = errors.New("no saved snapshot")

type Storage struct {
	db *sqlx.DB
}

// NewStorage initializes SQLite database and creates tables
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; sqlite serialises anyway
	db.SetMaxOpenConns(1)

	storage := &Storage{db: db}
	if err := storage.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return storage, nil
}

func (s *Storage) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bodies (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		is_main_star INTEGER NOT NULL DEFAULT 0,
		parent_id TEXT,
		-- Physics snapshot (NULL mass means no snapshot)
		mass_kg REAL,
		pos_x REAL, pos_y REAL, pos_z REAL,
		vel_x REAL, vel_y REAL, vel_z REAL,
		-- Orbit (nullable)
		semi_major_axis_m REAL,
		eccentricity REAL,
		inclination_deg REAL,
		period_s REAL
	);

	CREATE TABLE IF NOT EXISTS parent_changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		body_id TEXT NOT NULL,
		old_parent_id TEXT,
		new_parent_id TEXT,
		reason TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bodies_seq ON bodies(seq);
	CREATE INDEX IF NOT EXISTS idx_bodies_parent ON bodies(parent_id);
	CREATE INDEX IF NOT EXISTS idx_changes_tick ON parent_changes(tick);
	CREATE INDEX IF NOT EXISTS idx_changes_body ON parent_changes(body_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) setMeta(tx *sqlx.Tx, key, value string) error {
	_, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

func (s *Storage) getMeta(key string) (string, error) {
	var value string
	err := s.db.Get(&value, `SELECT value FROM meta WHERE key = ?`, key)
	return value, err
}

// SaveSystem persists the system identity
func (s *Storage) SaveSystem(sys *System) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, value := range map[string]string{
		"system_id":   sys.ID.String(),
		"system_name": sys.Name,
		"created_at":  fmt.Sprint(sys.CreatedAt.Unix()),
	} {
		if err := s.setMeta(tx, key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// LoadSystem retrieves the system identity. It returns sql.ErrNoRows when
// none was saved.
func (s *Storage) LoadSystem() (*System, error) {
	idStr, err := s.getMeta("system_id")
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("stored system id: %w", err)
	}
	name, err := s.getMeta("system_name")
	if err != nil {
		return nil, err
	}

	sys := &System{ID: id, Name: name}
	if created, err := s.getMeta("created_at"); err == nil {
		var unix int64
		fmt.Sscan(created, &unix)
		sys.CreatedAt = time.Unix(unix, 0)
	}
	return sys, nil
}

// bodyRow is the flat row form of a hierarchy.Body
type bodyRow struct {
	ID            string          `db:"id"`
	Seq           int             `db:"seq"`
	Name          string          `db:"name"`
	Kind          string          `db:"kind"`
	Status        string          `db:"status"`
	IsMainStar    bool            `db:"is_main_star"`
	ParentID      sql.NullString  `db:"parent_id"`
	MassKg        sql.NullFloat64 `db:"mass_kg"`
	PosX          sql.NullFloat64 `db:"pos_x"`
	PosY          sql.NullFloat64 `db:"pos_y"`
	PosZ          sql.NullFloat64 `db:"pos_z"`
	VelX          sql.NullFloat64 `db:"vel_x"`
	VelY          sql.NullFloat64 `db:"vel_y"`
	VelZ          sql.NullFloat64 `db:"vel_z"`
	SemiMajorAxis sql.NullFloat64 `db:"semi_major_axis_m"`
	Eccentricity  sql.NullFloat64 `db:"eccentricity"`
	Inclination   sql.NullFloat64 `db:"inclination_deg"`
	Period        sql.NullFloat64 `db:"period_s"`
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func toRow(seq int, b *hierarchy.Body) bodyRow {
	row := bodyRow{
		ID:         b.ID.String(),
		Seq:        seq,
		Name:       b.Name,
		Kind:       b.Kind.String(),
		Status:     b.Status.String(),
		IsMainStar: b.IsMainStar,
	}
	if b.HasParent() {
		row.ParentID = sql.NullString{String: b.ParentID.String(), Valid: true}
	}
	if p := b.Physics; p != nil {
		row.MassKg = nullFloat(p.MassKg)
		row.PosX, row.PosY, row.PosZ = nullFloat(p.Position.X), nullFloat(p.Position.Y), nullFloat(p.Position.Z)
		row.VelX, row.VelY, row.VelZ = nullFloat(p.Velocity.X), nullFloat(p.Velocity.Y), nullFloat(p.Velocity.Z)
	}
	if o := b.Orbit; o != nil {
		row.SemiMajorAxis = nullFloat(o.SemiMajorAxisM)
		row.Eccentricity = nullFloat(o.Eccentricity)
		row.Inclination = nullFloat(o.InclinationDeg)
		row.Period = nullFloat(o.PeriodSeconds)
	}
	return row
}

func (row bodyRow) toBody() (*hierarchy.Body, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("body id %q: %w", row.ID, err)
	}
	status, err := hierarchy.ParseStatus(row.Status)
	if err != nil {
		return nil, fmt.Errorf("body %s: %w", row.ID, err)
	}
	b := &hierarchy.Body{
		ID:         id,
		Name:       row.Name,
		Kind:       hierarchy.ParseKind(row.Kind),
		Status:     status,
		IsMainStar: row.IsMainStar,
	}
	if row.ParentID.Valid {
		if b.ParentID, err = uuid.Parse(row.ParentID.String); err != nil {
			return nil, fmt.Errorf("body %s parent: %w", row.ID, err)
		}
	}
	if row.MassKg.Valid {
		b.Physics = &hierarchy.Snapshot{
			MassKg:   row.MassKg.Float64,
			Position: hierarchy.Vector3{X: row.PosX.Float64, Y: row.PosY.Float64, Z: row.PosZ.Float64},
			Velocity: hierarchy.Vector3{X: row.VelX.Float64, Y: row.VelY.Float64, Z: row.VelZ.Float64},
		}
	}
	if row.SemiMajorAxis.Valid {
		b.Orbit = &hierarchy.Orbit{
			SemiMajorAxisM: row.SemiMajorAxis.Float64,
			Eccentricity:   row.Eccentricity.Float64,
			InclinationDeg: row.Inclination.Float64,
			PeriodSeconds:  row.Period.Float64,
		}
	}
	return b, nil
}

// SaveRegistry replaces the stored snapshot with the registry (full replace)
func (s *Storage) SaveRegistry(reg *hierarchy.Registry, tick uint64) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM bodies"); err != nil {
		return err
	}

	for i, b := range reg.Bodies() {
		_, err := tx.NamedExec(`
			INSERT INTO bodies (
				id, seq, name, kind, status, is_main_star, parent_id,
				mass_kg, pos_x, pos_y, pos_z, vel_x, vel_y, vel_z,
				semi_major_axis_m, eccentricity, inclination_deg, period_s
			) VALUES (
				:id, :seq, :name, :kind, :status, :is_main_star, :parent_id,
				:mass_kg, :pos_x, :pos_y, :pos_z, :vel_x, :vel_y, :vel_z,
				:semi_major_axis_m, :eccentricity, :inclination_deg, :period_s
			)`, toRow(i, b))
		if err != nil {
			return fmt.Errorf("save body %s: %w", b.ID, err)
		}
	}

	if err := s.setMeta(tx, "snapshot_version", CurrentSnapshotVersion.String()); err != nil {
		return err
	}
	if err := s.setMeta(tx, "snapshot_tick", fmt.Sprint(tick)); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadRegistry restores the saved snapshot and the tick it was taken at.
// It returns ErrNoSnapshot when nothing was saved yet.
func (s *Storage) LoadRegistry() (*hierarchy.Registry, uint64, error) {
	versionStr, err := s.getMeta("snapshot_version")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNoSnapshot
	}
	if err != nil {
		return nil, 0, err
	}
	version, err := ParseVersion(versionStr)
	if err != nil {
		return nil, 0, fmt.Errorf("snapshot version: %w", err)
	}
	if !CurrentSnapshotVersion.CanRead(version) {
		return nil, 0, fmt.Errorf("snapshot version %s cannot be read by %s", version, CurrentSnapshotVersion)
	}

	var rows []bodyRow
	if err := s.db.Select(&rows, `SELECT * FROM bodies ORDER BY seq ASC`); err != nil {
		return nil, 0, err
	}

	reg := hierarchy.NewRegistry()
	for _, row := range rows {
		b, err := row.toBody()
		if err != nil {
			return nil, 0, err
		}
		if err := reg.Add(b); err != nil {
			return nil, 0, err
		}
	}

	var tick uint64
	if tickStr, err := s.getMeta("snapshot_tick"); err == nil {
		fmt.Sscan(tickStr, &tick)
	}
	return reg, tick, nil
}

// ChangeEntry is one persisted parent change
type ChangeEntry struct {
	ID        int64            `db:"id" json:"id"`
	Tick      uint64           `db:"tick" json:"tick"`
	BodyID    string           `db:"body_id" json:"body_id"`
	OldParent sql.NullString   `db:"old_parent_id" json:"-"`
	NewParent sql.NullString   `db:"new_parent_id" json:"-"`
	Reason    hierarchy.Reason `db:"reason" json:"reason"`
	CreatedAt int64            `db:"created_at" json:"created_at"`

	OldParentID string `db:"-" json:"old_parent_id,omitempty"`
	NewParentID string `db:"-" json:"new_parent_id,omitempty"`
}

func nullID(id uuid.UUID) sql.NullString {
	if id == hierarchy.NoParent {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

// AppendChanges records a change log under the tick it happened at
func (s *Storage) AppendChanges(tick uint64, changes hierarchy.ChangeLog) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, c := range changes {
		_, err := tx.Exec(`
			INSERT INTO parent_changes (tick, body_id, old_parent_id, new_parent_id, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, tick, c.BodyID.String(), nullID(c.OldParent), nullID(c.NewParent), string(c.Reason), now)
		if err != nil {
			return fmt.Errorf("append change for %s: %w", c.BodyID, err)
		}
	}
	return tx.Commit()
}

// RecentChanges returns the newest changes first, at most limit of them.
// A non-empty bodyID filters to one body.
func (s *Storage) RecentChanges(limit int, bodyID string) ([]ChangeEntry, error) {
	var entries []ChangeEntry
	var err error
	if bodyID != "" {
		err = s.db.Select(&entries, `
			SELECT * FROM parent_changes WHERE body_id = ? ORDER BY id DESC LIMIT ?
		`, bodyID, limit)
	} else {
		err = s.db.Select(&entries, `SELECT * FROM parent_changes ORDER BY id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].OldParentID = entries[i].OldParent.String
		entries[i].NewParentID = entries[i].NewParent.String
	}
	return entries, nil
}

// GetStats returns basic statistics about the stored data
func (s *Storage) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var bodyCount, changeCount int
	if err := s.db.Get(&bodyCount, `SELECT COUNT(*) FROM bodies`); err != nil {
		return nil, err
	}
	if err := s.db.Get(&changeCount, `SELECT COUNT(*) FROM parent_changes`); err != nil {
		return nil, err
	}
	stats["stored_bodies"] = bodyCount
	stats["stored_changes"] = changeCount

	var reasons []struct {
		Reason string `db:"reason"`
		Count  int    `db:"n"`
	}
	if err := s.db.Select(&reasons, `SELECT reason, COUNT(*) AS n FROM parent_changes GROUP BY reason`); err != nil {
		return nil, err
	}
	byReason := make(map[string]int, len(reasons))
	for _, r := range reasons {
		byReason[r.Reason] = r.Count
	}
	stats["changes_by_reason"] = byReason

	return stats, nil
}
