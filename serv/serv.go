// Package serv wires the AQL compiler to its configuration, logging and the
// database the stored templates are read from.
package serv

import (
	"context"
	"database/sql"
	"os"

	"github.com/ehrbase/aqlengine/core"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service owns a compiler engine built from a Config.
type Service struct {
	conf *Config
	log  *zap.SugaredLogger
	db   *sql.DB
	*core.Engine
}

type Option func(*Service) error

// OptionSetDB sets the database templates are loaded from instead of
// opening the configured one.
func OptionSetDB(db *sql.DB) Option {
	return func(s *Service) error {
		s.db = db
		return nil
	}
}

// NewService builds the engine. When a database is configured the stored
// templates replace the ones listed in the config.
func NewService(ctx context.Context, conf *Config, log *zap.SugaredLogger, options ...Option) (*Service, error) {
	s := &Service{conf: conf, log: log}

	for _, op := range options {
		if err := op(s); err != nil {
			return nil, err
		}
	}

	if s.db == nil && conf.DB.Configured() {
		db, err := NewDB(conf, log)
		if err != nil {
			return nil, err
		}
		s.db = db
	}

	opts := []core.Option{
		core.OptionSetLogger(log),
		core.OptionSetMetricsRegisterer(prometheus.NewRegistry()),
	}

	if s.db != nil {
		ts, err := LoadTemplates(ctx, s.db, conf)
		if err != nil {
			return nil, err
		}
		log.Debugw("templates loaded", "count", len(ts.Templates()))
		opts = append(opts, core.OptionSetTemplateStore(ts))
	}

	e, err := core.New(&conf.Core, opts...)
	if err != nil {
		return nil, err
	}
	s.Engine = e
	return s, nil
}

// Close closes the database if one was opened
func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewLogger creates a new zap logger. format json writes JSON lines,
// anything else a colored console.
func NewLogger(format, level string) *zap.Logger {
	econf := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	lvl := zap.InfoLevel
	switch level {
	case "debug":
		lvl = zap.DebugLevel
	case "warn":
		lvl = zap.WarnLevel
	case "error":
		lvl = zap.ErrorLevel
	}

	var c zapcore.Core

	if format == "json" {
		c = zapcore.NewCore(zapcore.NewJSONEncoder(econf), os.Stderr, lvl)
	} else {
		econf.EncodeLevel = zapcore.CapitalColorLevelEncoder
		c = zapcore.NewCore(zapcore.NewConsoleEncoder(econf), os.Stderr, lvl)
	}
	return zap.New(c)
}
