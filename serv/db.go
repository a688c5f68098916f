package serv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/ehrbase/aqlengine/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const (
	pingTimeout  = 10 * time.Second
	maxOpenConns = 4
)

// NewDB opens the postgres database configured under database.
func NewDB(conf *Config, log *zap.SugaredLogger) (*sql.DB, error) {
	if !conf.DB.Configured() {
		return nil, errors.New("no database configured")
	}

	connString, err := initPostgres(conf)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("database open: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("database ping: %w", err)
	}

	log.Debugw("database connected", "host", conf.DB.Host, "dbname", conf.DB.DBName)
	return db, nil
}

// initPostgres registers the pgx connection config and returns its name
func initPostgres(conf *Config) (string, error) {
	config, err := pgx.ParseConfig(conf.DB.ConnString)
	if err != nil {
		return "", fmt.Errorf("database config: %w", err)
	}

	// Check if the connection string is empty, if it, look at the other fields
	if conf.DB.ConnString == "" {
		if conf.DB.Host != "" {
			config.Host = conf.DB.Host
		}
		if conf.DB.Port != 0 {
			config.Port = conf.DB.Port
		}
		if conf.DB.User != "" {
			config.User = conf.DB.User
		}
		if conf.DB.Password != "" {
			config.Password = conf.DB.Password
		}
		config.Database = conf.DB.DBName
	}

	if config.RuntimeParams == nil {
		config.RuntimeParams = map[string]string{}
	}
	config.RuntimeParams["application_name"] = "aqlc"

	return stdlib.RegisterConnConfig(config), nil
}

// templatesQuery returns the statement listing the stored templates
func templatesQuery(conf *Config) (string, []interface{}, error) {
	table := conf.DB.TemplateTable
	if table == "" {
		table = "template_store"
	}

	ds := goqu.Dialect("postgres").
		From(goqu.S(conf.DBSchema).Table(table)).
		Select(goqu.C("id"), goqu.C("template_id")).
		Order(goqu.C("template_id").Asc()).
		Prepared(true)

	return ds.ToSQL()
}

// LoadTemplates reads the stored operational templates from db.
func LoadTemplates(ctx context.Context, db *sql.DB, conf *Config) (*core.StaticTemplates, error) {
	q, args, err := templatesQuery(conf)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var list []core.Template
	for rows.Next() {
		var t core.Template
		if err := rows.Scan(&t.UUID, &t.ID); err != nil {
			return nil, fmt.Errorf("loading templates: %w", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	return core.NewTemplateList(list), nil
}
