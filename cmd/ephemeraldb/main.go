// Copyright 2021 FerretDB Inc.
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
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FerretDB/EphemeralDB/build/version"
	"github.com/FerretDB/EphemeralDB/internal/backends/ephemeral"
	"github.com/FerretDB/EphemeralDB/internal/util/debugbuild"
	"github.com/FerretDB/EphemeralDB/internal/util/logging"
	"github.com/FerretDB/EphemeralDB/internal/util/must"
)

// The cli struct represents all command-line commands, fields and flags.
// It's used for parsing the user input.
//
//nolint:lll // some tags are long
var cli struct {
	Version bool   `default:"false" help:"Print version to stdout and exit." env:"-"`
	Script  string `default:"-"     help:"Script file with one Extended JSON command per line, '-' for stdin."`

	FailFast    bool `default:"false" help:"Stop on the first failed command."`
	DumpMetrics bool `default:"false" help:"Dump metrics to stderr on exit."`

	Log struct {
		Level  string `default:"${default_log_level}" help:"${help_log_level}"`
		Format string `default:"console"              help:"${help_log_format}"                     enum:"${enum_log_format}"`
		UUID   bool   `default:"false"                help:"Add instance UUID to all log messages." negatable:""`
	} `embed:"" prefix:"log-"`
}

// Additional variables for the kong parsers.
var (
	kongOptions = []kong.Option{
		kong.Vars{
			"default_log_level": logging.DefaultLevel().String(),

			"enum_log_format": strings.Join(logging.Formats, ","),

			"help_log_format": fmt.Sprintf("Log format: '%s'.", strings.Join(logging.Formats, "', '")),
			"help_log_level":  fmt.Sprintf("Log level: '%s'.", strings.Join(logging.Levels, "', '")),
		},
		kong.DefaultEnvars("EPHEMERALDB"),
	}
)

func main() {
	kong.Parse(&cli, kongOptions...)

	run()
}

// setupLogger setups zap logger.
func setupLogger() *zap.Logger {
	info := version.Get()

	startupFields := []zap.Field{
		zap.String("version", info.Version),
		zap.String("commit", info.Commit),
		zap.String("branch", info.Branch),
		zap.Bool("dirty", info.Dirty),
		zap.Bool("debugBuild", info.DebugBuild),
		zap.Any("buildEnvironment", info.BuildEnvironment),
	}
	logUUID := uuid.NewString()

	// unless requested, don't add UUID to all messages, but log it once at startup
	if !cli.Log.UUID {
		startupFields = append(startupFields, zap.String("uuid", logUUID))
		logUUID = ""
	}

	level, err := zapcore.ParseLevel(cli.Log.Level)
	if err != nil {
		log.Fatal(err)
	}

	l, err := logging.Setup(level, cli.Log.Format, logUUID)
	if err != nil {
		log.Fatal(err)
	}

	l.Info("Starting EphemeralDB "+info.Version+"...", startupFields...)

	if debugbuild.Enabled {
		l.Info("This is debug build. Backend contract violations cause panics.")
	}

	return l
}

// dumpMetrics dumps all Prometheus metrics to stderr.
func dumpMetrics() {
	mfs := must.NotFail(prometheus.DefaultGatherer.Gather())

	for _, mf := range mfs {
		must.NotFail(expfmt.MetricFamilyToText(os.Stderr, mf))
	}
}

// openScript returns a reader for the script file, or stdin for "-".
func openScript(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	return os.Open(path)
}

// run sets up environment based on provided flags and runs the script.
func run() {
	info := version.Get()

	if cli.Version {
		fmt.Fprintln(os.Stdout, "version:", info.Version)
		fmt.Fprintln(os.Stdout, "commit:", info.Commit)
		fmt.Fprintln(os.Stdout, "branch:", info.Branch)
		fmt.Fprintln(os.Stdout, "dirty:", info.Dirty)
		fmt.Fprintln(os.Stdout, "debugBuild:", info.DebugBuild)

		return
	}

	logger := setupLogger()

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf)); err != nil {
		logger.Sugar().Warnf("Failed to set GOMAXPROCS: %s.", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := ephemeral.NewDatabase(&ephemeral.NewDatabaseOpts{L: logger.Named("ephemeral")})
	prometheus.MustRegister(db)

	b := db.Backend()
	b.InitiateConnection()

	script, err := openScript(cli.Script)
	if err != nil {
		logger.Sugar().Fatalf("Failed to open script: %s.", err)
	}

	s := &scriptRunner{
		b:        b,
		w:        os.Stdout,
		l:        logger.Named("script"),
		failFast: cli.FailFast,
	}

	err = s.run(ctx, script)

	_ = script.Close()
	b.CloseConnection()

	if cli.DumpMetrics || debugbuild.Enabled {
		dumpMetrics()
	}

	if err != nil {
		logger.Fatal("Script failed", zap.Error(err))
	}

	logger.Info("Script finished", zap.Int("commands", s.commands), zap.Int("failed", s.failed))
}
