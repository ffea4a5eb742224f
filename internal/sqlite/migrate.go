package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lowercasename/eggcms/pkg/schema"
)

// PlanAction describes what reconciliation does for one schema.
type PlanAction string

// Plan actions.
const (
	PlanCreate PlanAction = "create" // no registry record: create the table
	PlanAlter  PlanAction = "alter"  // hash changed: add new columns
	PlanNone   PlanAction = "none"   // hash unchanged
	PlanSkip   PlanAction = "skip"   // block schema: no table
)

// Plan is the reconciliation of one schema against its registry record.
type Plan struct {
	Schema     string     `json:"schema"`
	Action     PlanAction `json:"action"`
	Hash       string     `json:"hash,omitempty"`
	Statements []string   `json:"statements,omitempty"` // DDL to execute, in order
	Added      []string   `json:"added,omitempty"`      // fields gaining a column
	Removed    []string   `json:"removed,omitempty"`    // fields gone from the schema; their columns are kept
	Reused     []string   `json:"reused,omitempty"`     // re-added fields whose retained column is still present
}

// RegistryRecord is a schema's shape as of its last successful reconciliation.
type RegistryRecord struct {
	Name       string
	Kind       string
	Hash       string
	FieldsJSON string
}

// storedField is the part of a serialized field the migrator needs.
type storedField struct {
	Name string `json:"name"`
}

// Migrator reconciles schema definitions with their tables. Migration is
// additive only: columns are added, never dropped or renamed.
type Migrator struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewMigrator creates a Migrator over db.
func NewMigrator(db *sql.DB, logger zerolog.Logger) *Migrator {
	return &Migrator{db: db, log: logger}
}

// Record returns the registry record for a schema name.
func (m *Migrator) Record(ctx context.Context, name string) (*RegistryRecord, bool, error) {
	var r RegistryRecord
	err := m.db.QueryRowContext(ctx,
		`SELECT "name", "type", "hash", "fields_json" FROM "_schemas" WHERE "name" = ?`, name).
		Scan(&r.Name, &r.Kind, &r.Hash, &r.FieldsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read registry record %s: %w", name, err)
	}
	return &r, true, nil
}

// Plan computes the reconciliation for def without changing anything.
func (m *Migrator) Plan(ctx context.Context, def *schema.Definition) (*Plan, error) {
	if !def.HasTable() {
		return &Plan{Schema: def.Name, Action: PlanSkip}, nil
	}

	hash, err := HashSchema(def)
	if err != nil {
		return nil, err
	}
	plan := &Plan{Schema: def.Name, Hash: hash}

	rec, ok, err := m.Record(ctx, def.Name)
	if err != nil {
		return nil, err
	}
	if !ok {
		plan.Action = PlanCreate
		plan.Statements = []string{GenerateTableSQL(def)}
		plan.Added = def.FieldNames()
		return plan, nil
	}
	if rec.Hash == hash {
		plan.Action = PlanNone
		return plan, nil
	}

	var old []storedField
	if err := json.Unmarshal([]byte(rec.FieldsJSON), &old); err != nil {
		return nil, fmt.Errorf("parse registry fields for %s: %w", def.Name, err)
	}
	oldNames := make(map[string]bool, len(old))
	for _, f := range old {
		oldNames[f.Name] = true
	}
	newNames := make(map[string]bool, len(def.Fields))
	columns, err := m.columns(ctx, def.Name)
	if err != nil {
		return nil, err
	}

	plan.Action = PlanAlter
	for _, f := range def.Fields {
		newNames[f.Name] = true
		if oldNames[f.Name] {
			continue
		}
		if columns[f.Name] {
			plan.Reused = append(plan.Reused, f.Name)
			continue
		}
		plan.Statements = append(plan.Statements, AddColumnSQL(def.Name, f))
		plan.Added = append(plan.Added, f.Name)
	}
	for _, f := range old {
		if !newNames[f.Name] {
			plan.Removed = append(plan.Removed, f.Name)
		}
	}
	return plan, nil
}

// columns returns the set of column names currently on table. Columns of
// removed fields stay in the table, so this can be wider than the registry.
func (m *Migrator) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("read columns of %s: %w", table, err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	return cols, nil
}

// Apply executes a plan and records the schema's new shape, in one
// transaction. Plans with nothing to do are no-ops.
func (m *Migrator) Apply(ctx context.Context, def *schema.Definition, plan *Plan) error {
	switch plan.Action {
	case PlanSkip, PlanNone:
		return nil
	case PlanCreate:
		m.log.Info().Str("schema", def.Name).Msg("Creating table for schema")
	case PlanAlter:
		m.log.Info().Str("schema", def.Name).Msg("Schema changed")
	}

	fieldsJSON, err := json.Marshal(def.Fields)
	if err != nil {
		return fmt.Errorf("serialize fields for %s: %w", def.Name, err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration for %s: %w", def.Name, err)
	}
	defer tx.Rollback()

	for _, stmt := range plan.Statements {
		if plan.Action == PlanAlter {
			m.log.Info().Str("schema", def.Name).Str("statement", stmt).Msg("Adding column")
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", def.Name, err)
		}
	}
	for _, name := range plan.Reused {
		m.log.Info().Str("schema", def.Name).Str("column", name).Msg("Reusing retained column")
	}
	for _, name := range plan.Removed {
		m.log.Warn().Str("schema", def.Name).Str("field", name).
			Msg("Field removed from schema but column kept in database")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO "_schemas" ("name", "type", "hash", "fields_json")
		VALUES (?, ?, ?, ?)
		ON CONFLICT("name") DO UPDATE SET
			"type" = excluded."type",
			"hash" = excluded."hash",
			"fields_json" = excluded."fields_json"`,
		def.Name, string(def.Kind), plan.Hash, string(fieldsJSON))
	if err != nil {
		return fmt.Errorf("record schema %s: %w", def.Name, err)
	}
	return tx.Commit()
}

// Reconcile brings one schema's table in line with its definition.
func (m *Migrator) Reconcile(ctx context.Context, def *schema.Definition) error {
	if err := schema.Validate(def); err != nil {
		return err
	}
	plan, err := m.Plan(ctx, def)
	if err != nil {
		return err
	}
	return m.Apply(ctx, def, plan)
}

// ReconcileAll validates every schema, then reconciles them in order. No DDL
// runs unless all schemas are valid; the first failure stops the run.
func (m *Migrator) ReconcileAll(ctx context.Context, defs []*schema.Definition) ([]*Plan, error) {
	if err := schema.ValidateAll(defs); err != nil {
		return nil, err
	}
	plans := make([]*Plan, 0, len(defs))
	for _, def := range defs {
		plan, err := m.Plan(ctx, def)
		if err != nil {
			return plans, err
		}
		if err := m.Apply(ctx, def, plan); err != nil {
			return plans, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
