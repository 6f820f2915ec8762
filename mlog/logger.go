/*
 * Copyright (C) 2020-2022, IrineSistiana
 *
 * This file is part of multilist.
 *
 * multilist is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * multilist is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package mlog

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	// Level, See also zapcore.ParseLevel.
	Level string `yaml:"level"`

	// File that logger will be writen into.
	// Default is stderr.
	File string `yaml:"file"`

	// Production enables json output.
	Production bool `yaml:"production"`
}

var (
	stderr = zapcore.Lock(os.Stderr)

	lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	l   = newConsoleLogger(stderr, lvl)
	s   = l.Sugar()
)

// NewLogger builds a logger from lc. The level of the package-level
// logger follows lc.Level. closeLog closes the log file, if any; the
// logger must not be used after it is called.
func NewLogger(lc *LogConfig) (lg *zap.Logger, closeLog func() error, err error) {
	lvl, err := zapcore.ParseLevel(lc.Level)
	if len(lc.Level) == 0 {
		lvl, err = zapcore.InfoLevel, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	atomicLvl := zap.NewAtomicLevelAt(lvl)

	out := stderr
	closeLog = func() error { return nil }
	if len(lc.File) > 0 {
		f, err := os.OpenFile(lc.File, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = zapcore.Lock(f)
		closeLog = func() error {
			f.Sync()
			return f.Close()
		}
	}

	SetLevel(lvl)
	if lc.Production {
		lg = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), out, atomicLvl))
	} else {
		lg = newConsoleLogger(out, atomicLvl)
	}
	return lg, closeLog, nil
}

func newConsoleLogger(out zapcore.WriteSyncer, lvl zapcore.LevelEnabler) *zap.Logger {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(ec), out, lvl))
}

// L is a global logger.
func L() *zap.Logger {
	return l
}

// SetLevel sets the log level of the global logger.
func SetLevel(l zapcore.Level) {
	lvl.SetLevel(l)
}

// S is a global logger.
func S() *zap.SugaredLogger {
	return s
}
