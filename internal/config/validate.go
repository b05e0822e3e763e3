package config

import (
	"fmt"

	"cube-sync/internal/domain"
	"cube-sync/internal/schema"
)

// ValidationError represents a single configuration problem.
type ValidationError struct {
	Path    string // e.g. "parameters.items[2].type"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Validate checks the configuration for the selected action without
// contacting the platform.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	switch c.Action {
	case ActionRun:
		errs = append(errs, c.validateDB()...)
		errs = append(errs, c.validateRun()...)
	case ActionTestConnection:
		errs = append(errs, c.validateDB()...)
	default:
		errs = append(errs, ValidationError{
			Path:    "action",
			Message: fmt.Sprintf("unsupported action %q (expected %q or %q)", c.Action, ActionRun, ActionTestConnection),
		})
	}
	return errs
}

func required(errs []ValidationError, path, value string) []ValidationError {
	if value == "" {
		errs = append(errs, ValidationError{Path: path, Message: "is required"})
	}
	return errs
}

func (c *Config) validateDB() []ValidationError {
	var errs []ValidationError
	db := c.Parameters.DB
	errs = required(errs, "parameters.db.host", db.Host)
	errs = required(errs, "parameters.db.username", db.Username)
	errs = required(errs, "parameters.db.#password", db.Password)
	if c.DatamodelName() == "" {
		errs = append(errs, ValidationError{Path: "parameters.db.database", Message: "is required"})
	}
	return errs
}

func (c *Config) validateRun() []ValidationError {
	var errs []ValidationError
	p := c.Parameters
	errs = required(errs, "parameters.dbName", p.DBName)
	errs = required(errs, "parameters.tableId", p.TableID)

	if len(p.Items) == 0 {
		errs = append(errs, ValidationError{Path: "parameters.items", Message: "at least one column is required"})
	}
	for i, it := range p.Items {
		path := fmt.Sprintf("parameters.items[%d]", i)
		if it.ID == "" && it.DBName == "" {
			errs = append(errs, ValidationError{Path: path + ".dbName", Message: "is required"})
		}
		errs = required(errs, path+".name", it.Name)
		if it.Type == "" {
			errs = append(errs, ValidationError{Path: path + ".type", Message: "is required"})
		} else if _, err := schema.TypeCode(it.Type); err != nil {
			errs = append(errs, ValidationError{Path: path + ".type", Message: err.Error()})
		}
		if _, err := schema.SplitLength(it.Size); err != nil {
			errs = append(errs, ValidationError{Path: path + ".size", Message: err.Error()})
		}
	}

	for i, r := range p.Relationships {
		path := fmt.Sprintf("parameters.relationships[%d]", i)
		errs = required(errs, path+".column", r.Column)
		errs = required(errs, path+".target.table", r.Target.Table)
		errs = required(errs, path+".target.column", r.Target.Column)
	}

	if !domain.BuildType(p.BuildType).Valid() {
		errs = append(errs, ValidationError{
			Path:    "parameters.buildType",
			Message: fmt.Sprintf("unsupported build type %q", p.BuildType),
		})
	}
	if p.BuildTimeout < 0 {
		errs = append(errs, ValidationError{Path: "parameters.buildTimeout", Message: "must not be negative"})
	}
	if p.PollInterval < 0 {
		errs = append(errs, ValidationError{Path: "parameters.pollInterval", Message: "must not be negative"})
	}
	return errs
}
