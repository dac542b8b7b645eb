// Package persistence stores social groups, balanced dwellings and divided
// population years in SQLite, with an optional Postgres mirror.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/population-restorator/internal/cohort"
	"github.com/talgya/population-restorator/internal/demography"
	"github.com/talgya/population-restorator/internal/territory"
)

// ErrYearExists is returned when a year is already stored.
var ErrYearExists = errors.New("persistence: year already stored")

// DB wraps a SQLite connection for restored population storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS social_groups (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		probability REAL NOT NULL,
		is_primary INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS social_groups_distribution (
		social_group_id INTEGER NOT NULL REFERENCES social_groups(id),
		age INTEGER NOT NULL,
		men_probability REAL NOT NULL,
		women_probability REAL NOT NULL,
		PRIMARY KEY (social_group_id, age)
	);

	CREATE TABLE IF NOT EXISTS territories (
		id INTEGER PRIMARY KEY,
		parent_id INTEGER,
		name TEXT NOT NULL,
		population INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS houses (
		id INTEGER PRIMARY KEY,
		territory_id INTEGER NOT NULL,
		living_area REAL,
		capacity INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS population_divided (
		year INTEGER NOT NULL,
		house_id INTEGER NOT NULL REFERENCES houses(id),
		territory_id INTEGER NOT NULL,
		age INTEGER NOT NULL,
		social_group_id INTEGER NOT NULL REFERENCES social_groups(id),
		men INTEGER NOT NULL,
		women INTEGER NOT NULL,
		PRIMARY KEY (year, house_id, age, social_group_id)
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_divided_territory ON population_divided(year, territory_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type groupRow struct {
	ID          int64   `db:"id"`
	Name        string  `db:"name"`
	Probability float64 `db:"probability"`
	IsPrimary   bool    `db:"is_primary"`
}

type distributionRow struct {
	GroupID int64   `db:"social_group_id"`
	Age     int     `db:"age"`
	Men     float64 `db:"men_probability"`
	Women   float64 `db:"women_probability"`
}

// SaveGroups replaces the social group catalogue.
func (db *DB) SaveGroups(dist *demography.SocialGroupsDistribution) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM social_groups_distribution"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM social_groups"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO social_groups_distribution
		(social_group_id, age, men_probability, women_probability) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, g := range dist.Groups() {
		if _, err := tx.Exec(
			"INSERT INTO social_groups (id, name, probability, is_primary) VALUES (?, ?, ?, ?)",
			g.ID, g.Name, g.Probability, g.Primary,
		); err != nil {
			return fmt.Errorf("insert social group %q: %w", g.Name, err)
		}
		for age := range g.Distribution.Men {
			if _, err := stmt.Exec(g.ID, age, g.Distribution.Men[age], g.Distribution.Women[age]); err != nil {
				return fmt.Errorf("insert distribution of %q: %w", g.Name, err)
			}
		}
	}

	return tx.Commit()
}

// LoadGroups reads the social group catalogue back.
func (db *DB) LoadGroups() (*demography.SocialGroupsDistribution, error) {
	var groups []groupRow
	if err := db.conn.Select(&groups, "SELECT id, name, probability, is_primary FROM social_groups ORDER BY is_primary DESC, id"); err != nil {
		return nil, err
	}
	var rows []distributionRow
	if err := db.conn.Select(&rows, `SELECT social_group_id, age, men_probability, women_probability
		FROM social_groups_distribution ORDER BY social_group_id, age`); err != nil {
		return nil, err
	}

	curves := make(map[int64]*demography.SexAgeDistribution, len(groups))
	for _, g := range groups {
		curves[g.ID] = &demography.SexAgeDistribution{}
	}
	for _, r := range rows {
		c, ok := curves[r.GroupID]
		if !ok {
			return nil, fmt.Errorf("distribution row for unknown social group %d", r.GroupID)
		}
		if r.Age != len(c.Men) {
			return nil, fmt.Errorf("social group %d distribution skips age %d", r.GroupID, len(c.Men))
		}
		c.Men = append(c.Men, r.Men)
		c.Women = append(c.Women, r.Women)
	}

	dist := &demography.SocialGroupsDistribution{}
	for _, g := range groups {
		sg := demography.SocialGroup{ID: g.ID, Name: g.Name, Probability: g.Probability, Distribution: *curves[g.ID]}
		if g.IsPrimary {
			dist.Primary = append(dist.Primary, sg)
		} else {
			dist.Additional = append(dist.Additional, sg)
		}
	}
	if err := dist.Validate(); err != nil {
		return nil, err
	}
	return dist, nil
}

// SaveTree replaces the territories and upserts the dwellings of a balanced
// tree. Dwellings that neither the tree nor any stored year references are
// removed.
func (db *DB) SaveTree(tree *territory.Tree) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM territories"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM houses WHERE id NOT IN (SELECT DISTINCT house_id FROM population_divided)"); err != nil {
		return err
	}
	for _, t := range tree.Records() {
		var parent any
		if t.ParentID != nil {
			parent = *t.ParentID
		}
		if _, err := tx.Exec(
			"INSERT INTO territories (id, parent_id, name, population) VALUES (?, ?, ?, ?)",
			t.ID, parent, t.Name, *t.Population,
		); err != nil {
			return fmt.Errorf("insert territory %d: %w", t.ID, err)
		}
	}
	for _, h := range tree.HouseRecords() {
		if _, err := tx.Exec(`INSERT INTO houses (id, territory_id, living_area, capacity) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET territory_id = excluded.territory_id,
				living_area = excluded.living_area, capacity = excluded.capacity`,
			h.ID, h.TerritoryID, *h.LivingArea, *h.Population,
		); err != nil {
			return fmt.Errorf("insert house %d: %w", h.ID, err)
		}
	}

	slog.Info("balanced tree saved", "territories", tree.Len())
	return tx.Commit()
}

// HasYear reports whether any row of the year is stored.
func (db *DB) HasYear(year int) (bool, error) {
	var n int
	err := db.conn.Get(&n, "SELECT count(*) FROM population_divided WHERE year = ?", year)
	return n > 0, err
}

// SaveTable stores one year. Stored years are never overwritten.
func (db *DB) SaveTable(t *cohort.Table) error {
	exists, err := db.HasYear(t.Year)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %d", ErrYearExists, t.Year)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, h := range t.Houses() {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO houses (id, territory_id, capacity) VALUES (?, ?, ?)",
			h.ID, h.TerritoryID, h.Capacity,
		); err != nil {
			return fmt.Errorf("insert house %d: %w", h.ID, err)
		}
	}

	stmt, err := tx.Preparex(`INSERT INTO population_divided
		(year, house_id, territory_id, age, social_group_id, men, women)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	records := t.Records()
	for _, r := range records {
		if _, err := stmt.Exec(r.Year, r.HouseID, r.TerritoryID, r.Age, r.GroupID, r.Men, r.Women); err != nil {
			return fmt.Errorf("insert year %d house %d: %w", r.Year, r.HouseID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("year saved", "year", t.Year, "rows", len(records))
	return nil
}

type houseRow struct {
	ID          int64 `db:"id"`
	TerritoryID int64 `db:"territory_id"`
	Capacity    int   `db:"capacity"`
}

type dividedRow struct {
	Year        int   `db:"year"`
	HouseID     int64 `db:"house_id"`
	TerritoryID int64 `db:"territory_id"`
	Age         int   `db:"age"`
	GroupID     int64 `db:"social_group_id"`
	Men         int   `db:"men"`
	Women       int   `db:"women"`
}

// LoadTable rebuilds a stored year with the stored group catalogue.
func (db *DB) LoadTable(year int) (*cohort.Table, error) {
	dist, err := db.LoadGroups()
	if err != nil {
		return nil, fmt.Errorf("load social groups: %w", err)
	}
	exists, err := db.HasYear(year)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("year %d: %w", year, sql.ErrNoRows)
	}

	var houses []houseRow
	if err := db.conn.Select(&houses, "SELECT id, territory_id, capacity FROM houses ORDER BY id"); err != nil {
		return nil, err
	}
	var rows []dividedRow
	if err := db.conn.Select(&rows, `SELECT year, house_id, territory_id, age, social_group_id, men, women
		FROM population_divided WHERE year = ? ORDER BY house_id, age, social_group_id`, year); err != nil {
		return nil, err
	}

	tableHouses := make([]cohort.House, len(houses))
	for i, h := range houses {
		tableHouses[i] = cohort.House{ID: h.ID, TerritoryID: h.TerritoryID, Capacity: h.Capacity}
	}
	records := make([]cohort.Record, len(rows))
	for i, r := range rows {
		records[i] = cohort.Record(r)
	}
	return cohort.FromRecords(year, dist.Groups(), dist.Ages(), tableHouses, records)
}

// Years lists stored years in ascending order.
func (db *DB) Years() ([]int, error) {
	var years []int
	err := db.conn.Select(&years, "SELECT DISTINCT year FROM population_divided ORDER BY year")
	return years, err
}

// TerritoryAges sums primary men and women by dwelling and age for one
// territory of a stored year.
func (db *DB) TerritoryAges(year int, territoryID territory.ID) ([]cohort.HouseAges, error) {
	dist, err := db.LoadGroups()
	if err != nil {
		return nil, err
	}
	var rows []struct {
		HouseID int64 `db:"house_id"`
		Age     int   `db:"age"`
		Men     int   `db:"men"`
		Women   int   `db:"women"`
	}
	err = db.conn.Select(&rows, `SELECT p.house_id, p.age, sum(p.men) AS men, sum(p.women) AS women
		FROM population_divided p JOIN social_groups sg ON p.social_group_id = sg.id
		WHERE p.year = ? AND p.territory_id = ? AND sg.is_primary = 1
		GROUP BY p.house_id, p.age
		ORDER BY p.house_id, p.age`, year, territoryID)
	if err != nil {
		return nil, err
	}

	ages := dist.Ages()
	var out []cohort.HouseAges
	for _, r := range rows {
		if len(out) == 0 || out[len(out)-1].HouseID != r.HouseID {
			out = append(out, cohort.HouseAges{HouseID: r.HouseID, Men: make([]int, ages), Women: make([]int, ages)})
		}
		if r.Age < 0 || r.Age >= ages {
			return nil, fmt.Errorf("house %d has age %d outside the distribution", r.HouseID, r.Age)
		}
		last := &out[len(out)-1]
		last.Men[r.Age] = r.Men
		last.Women[r.Age] = r.Women
	}
	return out, nil
}

// SaveMeta stores a key-value pair in run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}
