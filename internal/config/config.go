package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	Host string `koanf:"host"`
	Addr string `koanf:"addr"`
	// Timezone is the site wall clock used when shifts become time entries.
	Timezone string   `koanf:"timezone"`
	Database Database `koanf:"db"`
	Payroll  Payroll  `koanf:"payroll"`
}

type Database struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Pass     string `koanf:"pass"`
	Name     string `koanf:"name"`
	Schema   string `koanf:"schema"`
	MaxConns int32  `koanf:"maxconns"`
	MinConns int32  `koanf:"minconns"`
}

type Payroll struct {
	// OvertimeThreshold is the number of hours per ISO week paid at the regular rate.
	OvertimeThreshold float64 `koanf:"overtimethreshold"`
	// OvertimeMultiplier is applied to the hourly rate for hours above the threshold.
	OvertimeMultiplier float64   `koanf:"overtimemultiplier"`
	Scheduler          Scheduler `koanf:"scheduler"`
}

type Scheduler struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

func Defaults() Application {
	return Application{
		Host:     "http://localhost:8181",
		Addr:     ":8181",
		Timezone: "UTC",
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			User:     "buildledger",
			Pass:     "",
			Name:     "buildledger",
			Schema:   "buildledger",
			MaxConns: 25,
			MinConns: 5,
		},
		Payroll: Payroll{
			OvertimeThreshold:  40,
			OvertimeMultiplier: 1.5,
			Scheduler: Scheduler{
				Enabled:  true,
				Interval: time.Hour,
			},
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "BUILDLEDGER_",
		TransformFunc: func(k, v string) (string, any) {
			// BUILDLEDGER_PAYROLL_SCHEDULER_ENABLED -> payroll.scheduler.enabled
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "BUILDLEDGER_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}
	if err := app.Validate(); err != nil {
		log.Errorf("invalid configuration: %v", err)
		return Application{}, err
	}

	return app, nil
}

// Validate rejects settings the payroll and shift services cannot run with.
func (a Application) Validate() error {
	var errs []error
	if a.Payroll.OvertimeThreshold <= 0 {
		errs = append(errs, fmt.Errorf("payroll.overtimethreshold must be positive, got %v", a.Payroll.OvertimeThreshold))
	}
	if a.Payroll.OvertimeMultiplier < 1 {
		errs = append(errs, fmt.Errorf("payroll.overtimemultiplier must be at least 1, got %v", a.Payroll.OvertimeMultiplier))
	}
	if a.Payroll.Scheduler.Enabled && a.Payroll.Scheduler.Interval <= 0 {
		errs = append(errs, fmt.Errorf("payroll.scheduler.interval must be positive when the scheduler is enabled"))
	}
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if a.Database.MinConns > a.Database.MaxConns {
		errs = append(errs, fmt.Errorf("db.minconns (%d) exceeds db.maxconns (%d)", a.Database.MinConns, a.Database.MaxConns))
	}
	return errors.Join(errs...)
}
