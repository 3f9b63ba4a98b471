// Command seed bootstraps a clearance database with an admin account and the
// default clearance type catalogue. It is idempotent: existing rows are left
// alone, so it is safe to run against a database that already has data.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

type seedType struct {
	Name         string `json:"name"`
	DisplayName  string `json:"display_name"`
	FacultyBased bool   `json:"faculty_based"`
	TargetLevel  string `json:"target_level"`
}

var defaultTypes = []seedType{
	{Name: "library", DisplayName: "Library Clearance"},
	{Name: "bursary", DisplayName: "Bursary Clearance"},
	{Name: "hostel", DisplayName: "Hostel Clearance"},
	{Name: "department", DisplayName: "Departmental Clearance", FacultyBased: true},
	{Name: "final", DisplayName: "Final Year Clearance", TargetLevel: "FINAL"},
}

func main() {
	var (
		dsn           string
		adminEmail    string
		adminPassword string
		adminName     string
		typesPath     string
		timeout       time.Duration
	)

	flag.StringVar(&dsn, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string")
	flag.StringVar(&adminEmail, "admin-email", "admin@unihub.edu", "Email for the bootstrap admin account")
	flag.StringVar(&adminPassword, "admin-password", "", "Password for the bootstrap admin account")
	flag.StringVar(&adminName, "admin-name", "System Administrator", "Display name for the bootstrap admin account")
	flag.StringVar(&typesPath, "types", "", "Optional JSON file overriding the default clearance type catalogue")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall deadline for seeding")
	flag.Parse()

	if dsn == "" {
		log.Fatal("no DSN provided: set -dsn or DATABASE_URL")
	}
	if adminPassword == "" {
		log.Fatal("-admin-password is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer db.Close()

	types, err := loadTypes(typesPath)
	if err != nil {
		log.Fatalf("failed to load clearance types: %v", err)
	}

	created, err := seedTypes(ctx, db, types)
	if err != nil {
		log.Fatalf("failed to seed clearance types: %v", err)
	}
	log.Printf("clearance types: %d created, %d already present", created, len(types)-created)

	adminCreated, err := seedAdmin(ctx, db, adminEmail, adminPassword, adminName)
	if err != nil {
		log.Fatalf("failed to seed admin account: %v", err)
	}
	if adminCreated {
		log.Printf("admin account %s created", adminEmail)
	} else {
		log.Printf("admin account %s already exists, skipped", adminEmail)
	}
}

func loadTypes(path string) ([]seedType, error) {
	if path == "" {
		return defaultTypes, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var types []seedType
	if err := json.Unmarshal(data, &types); err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("no clearance types defined in %s", path)
	}
	return types, nil
}

func seedTypes(ctx context.Context, db *sqlx.DB, types []seedType) (int, error) {
	const query = `INSERT INTO clearance_types (id, name, display_name, faculty_based, target_level, active, requirements, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, TRUE, '[]', $6, $6)
        ON CONFLICT (name) DO NOTHING`
	created := 0
	now := time.Now().UTC()
	for _, st := range types {
		res, err := db.ExecContext(ctx, query, uuid.NewString(), st.Name, st.DisplayName, st.FacultyBased, st.TargetLevel, now)
		if err != nil {
			return created, fmt.Errorf("insert type %s: %w", st.Name, err)
		}
		if rows, err := res.RowsAffected(); err == nil && rows > 0 {
			created++
		}
	}
	return created, nil
}

func seedAdmin(ctx context.Context, db *sqlx.DB, email, password, fullName string) (bool, error) {
	var existing string
	err := db.GetContext(ctx, &existing, `SELECT id FROM users WHERE email = $1`, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("check admin account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	const query = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 'ADMIN', TRUE, $5, $5)`
	if _, err := db.ExecContext(ctx, query, uuid.NewString(), email, string(hash), fullName, now); err != nil {
		return false, fmt.Errorf("insert admin account: %w", err)
	}
	return true, nil
}
