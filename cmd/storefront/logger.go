// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kadirpekel/storefront/pkg/config"
	"github.com/kadirpekel/storefront/pkg/logger"
)

const (
	LogFileEnvVar   = "LOG_FILE"
	LogLevelEnvVar  = "LOG_LEVEL"
	LogFormatEnvVar = "LOG_FORMAT"
)

// logSettings holds the resolved logger options. Empty fields were not set
// on the command line or in the environment.
type logSettings struct {
	Level  string
	File   string
	Format string
}

func settingsFromCLI(cliLevel, cliFile, cliFormat string) logSettings {
	s := logSettings{Level: cliLevel, File: cliFile, Format: cliFormat}
	if s.Level == "" {
		s.Level = os.Getenv(LogLevelEnvVar)
	}
	if s.File == "" {
		s.File = os.Getenv(LogFileEnvVar)
	}
	if s.Format == "" {
		s.Format = os.Getenv(LogFormatEnvVar)
	}
	return s
}

// withConfig fills fields left empty by CLI and environment from the config
// file's logger section.
func (s logSettings) withConfig(cfg *config.LoggerConfig) logSettings {
	if cfg == nil {
		return s
	}
	if s.Level == "" {
		s.Level = cfg.Level
	}
	if s.File == "" {
		s.File = cfg.File
	}
	if s.Format == "" {
		s.Format = cfg.Format
	}
	return s
}

func (s logSettings) init() (func(), error) {
	levelStr := s.Level
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	format := s.Format
	if format == "" {
		format = logger.FormatSimple
	}

	var output io.Writer = os.Stderr
	var cleanup func()
	if s.File != "" {
		file, closeFn, err := logger.OpenLogFile(s.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = closeFn
	}
	logger.Init(level, output, format)
	return cleanup, nil
}

// initLoggerFromCLI initializes the logger before any config is read.
// Priority: CLI flags > env vars > defaults
func initLoggerFromCLI(cliLevel, cliFile, cliFormat string) (func(), error) {
	return settingsFromCLI(cliLevel, cliFile, cliFormat).init()
}

// initLoggerFromConfig re-initializes the logger once the config file is
// loaded. Priority: CLI flags > env vars > config file > defaults
func initLoggerFromConfig(cli *CLI, cfg *config.LoggerConfig) (func(), error) {
	return settingsFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat).withConfig(cfg).init()
}
