package backend

import (
	"errors"
	"fmt"
	"time"

	"tracker/internal/config"
	"tracker/internal/core"
)

// Config selects the store and the optional event publisher.
type Config struct {
	Type Kind

	CSVPath      string
	SQLiteDBPath string

	// An empty AMQPURL disables publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	Investments core.CategorySet
	CacheTTL    time.Duration
}

// FromAppConfig picks the store settings out of the process config.
func FromAppConfig(app *config.Config) (Config, error) {
	if app == nil {
		return Config{}, errors.New("app config is nil")
	}
	kind := Kind(app.DataBackend)
	if !kind.Known() {
		return Config{}, fmt.Errorf("unknown data backend %q (want one of %v)", app.DataBackend, Kinds)
	}
	return Config{
		Type:         kind,
		CSVPath:      app.LedgerCSVPath,
		SQLiteDBPath: app.SQLiteDBPath,
		AMQPURL:      app.AMQPURL,
		AMQPExchange: app.AMQPExchange,
		AMQPQueue:    app.AMQPQueue,
		Investments:  app.Investments(),
		CacheTTL:     app.CacheTTL,
	}, nil
}

// Validate reports every missing setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Type {
	case CSV:
		if c.CSVPath == "" {
			errs = append(errs, errors.New("csv store needs a file path"))
		}
	case SQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, errors.New("sqlite store needs a database path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown data backend %q", c.Type))
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		errs = append(errs, errors.New("AMQP_URL set without exchange or queue"))
	}
	return errors.Join(errs...)
}
