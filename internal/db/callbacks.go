/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/boombox/internal/telemetry"
)

const startTimeKey = "boombox:start_time"

type registerFunc func(name string, fn func(*gorm.DB)) error

// RegisterCallbacks times every CRUD operation into the database metrics.
func RegisterCallbacks(database *gorm.DB) error {
	cb := database.Callback()
	hooks := []struct {
		op            string
		before, after registerFunc
	}{
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
	}

	for _, h := range hooks {
		if err := h.before("telemetry:before_"+h.op, beforeCallback); err != nil {
			return fmt.Errorf("register before %s: %w", h.op, err)
		}
		if err := h.after("telemetry:after_"+h.op, afterCallback(h.op)); err != nil {
			return fmt.Errorf("register after %s: %w", h.op, err)
		}
	}
	return nil
}

func beforeCallback(database *gorm.DB) {
	database.InstanceSet(startTimeKey, time.Now())
}

func afterCallback(operation string) func(*gorm.DB) {
	return func(database *gorm.DB) {
		value, ok := database.InstanceGet(startTimeKey)
		if !ok {
			return
		}
		start, ok := value.(time.Time)
		if !ok {
			return
		}

		table := database.Statement.Table
		if table == "" {
			table = "unknown"
		}
		telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())

		if database.Error != nil && !errors.Is(database.Error, gorm.ErrRecordNotFound) {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation, table).Inc()
		}
	}
}
