// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/orderwatch/cmd/orderwatch/config"
	"github.com/AleutianAI/orderwatch/pkg/logging"
	"github.com/AleutianAI/orderwatch/pkg/ux"
	"github.com/AleutianAI/orderwatch/services/orderwatch/entity"
	"github.com/AleutianAI/orderwatch/services/orderwatch/history"
	"github.com/AleutianAI/orderwatch/services/orderwatch/locale"
	"github.com/AleutianAI/orderwatch/services/orderwatch/migrate"
	"github.com/AleutianAI/orderwatch/services/orderwatch/options"
	"github.com/AleutianAI/orderwatch/services/orderwatch/source"
	"github.com/AleutianAI/orderwatch/services/orderwatch/storage"
	"github.com/AleutianAI/orderwatch/services/orderwatch/telemetry"
	"github.com/AleutianAI/orderwatch/services/orderwatch/timeline"
	"github.com/AleutianAI/orderwatch/services/orderwatch/tracker"
)

// app holds everything a command needs. It is built once per invocation
// by setupApp.
type app struct {
	cfg      config.Config
	logger   *logging.Logger
	printer  *ux.Printer
	tr       *locale.Catalog
	options  *options.Lookup
	shutdown func(context.Context) error
}

var current *app

func setupApp(cmd *cobra.Command, _ []string) error {
	level := ux.InitPersonality(personalityLevel)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDirFlag != "" {
		cfg.DataDir = logging.ExpandPath(dataDirFlag)
	}
	if languageFlag != "" {
		cfg.Language = languageFlag
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Log.Level),
		LogDir:  cfg.Log.Dir,
		Service: "orderwatch",
		JSON:    cfg.Log.JSON,
		Quiet:   statusMode,
		Console: cmd.ErrOrStderr(),
	})
	slog.SetDefault(logger.Slog())

	bundle, err := locale.LoadEmbedded()
	if err != nil {
		_ = logger.Close()
		return fmt.Errorf("load translations: %w", err)
	}
	lang := cfg.Language
	if lang == "" {
		lang = locale.FromEnvironment()
	}
	codes, err := options.Load(cfg.Options.File, logger.Slog())
	if err != nil {
		_ = logger.Close()
		return fmt.Errorf("load option codes: %w", err)
	}

	telCfg := telemetry.DefaultConfig()
	telCfg.ServiceVersion = version
	telCfg.TraceFile = cfg.Telemetry.TraceFile
	telCfg.MetricsFile = cfg.Telemetry.MetricsFile
	telCfg.MetricsFormat = cfg.Telemetry.MetricsFormat
	shutdown, err := telemetry.Init(cmd.Context(), telCfg)
	if err != nil {
		_ = logger.Close()
		return err
	}

	current = &app{
		cfg:    cfg,
		logger: logger,
		printer: &ux.Printer{
			Out:   cmd.OutOrStdout(),
			Err:   cmd.ErrOrStderr(),
			Level: level,
		},
		tr:       bundle.Catalog(lang),
		options:  codes,
		shutdown: shutdown,
	}
	logger.Debug("configuration loaded",
		"data_dir", cfg.DataDir,
		"locale", current.tr.Locale(),
		"personality", string(level),
	)
	return nil
}

// closeApp flushes telemetry and closes the log file. It runs after the
// command, whether or not it failed.
func closeApp(ctx context.Context) error {
	if current == nil {
		return nil
	}
	err := current.shutdown(context.WithoutCancel(ctx))
	if cerr := current.logger.Close(); err == nil {
		err = cerr
	}
	current = nil
	return err
}

func (a *app) locations() migrate.Locations {
	return migrate.Locations{
		HistoryFiles: a.cfg.HistoryPaths(),
		OrdersFiles:  a.cfg.OrdersPaths(),
	}
}

func (a *app) pipeline() *migrate.Pipeline {
	return migrate.NewPipeline(a.locations(), a.logger.Slog())
}

func (a *app) tracker(confirm tracker.ConfirmFunc) *tracker.Tracker {
	return tracker.New(tracker.Config{
		Paths: tracker.Paths{
			Orders:  a.cfg.OrdersPaths(),
			History: a.cfg.HistoryPaths(),
		},
		Pipeline:        a.pipeline(),
		Source:          source.NewDirSource(a.cfg.Source.Dir, a.logger.Slog()),
		Workers:         a.cfg.Source.Workers,
		IgnoredPrefixes: a.cfg.Status.IgnoredPrefixes,
		Confirm:         confirm,
		Logger:          a.logger.Slog(),
	})
}

// readPath returns the first existing store among candidates, or the
// preferred path when none exists yet.
func readPath(candidates []string) string {
	if path, ok := storage.Locate(candidates...); ok {
		return path
	}
	return candidates[0]
}

func (a *app) loadOrders() (*entity.Store, error) {
	return entity.LoadOrEmpty(readPath(a.cfg.OrdersPaths()), a.logger.Slog())
}

func (a *app) loadHistory() (*history.Store, error) {
	return history.LoadOrEmpty(readPath(a.cfg.HistoryPaths()), a.logger.Slog())
}

// showOrders prints the header and timeline of every order in store, or
// only of ref when set.
func (a *app) showOrders(store *entity.Store, hist *history.Store, ref string) error {
	selected := entity.Filter(store, ref)
	if ref != "" && selected.Len() == 0 {
		a.printer.Warning(a.tr.Tf("No order with reference %s found", ref))
		return nil
	}

	builder := timeline.NewBuilder(a.tr)
	first := true
	var err error
	selected.Range(func(r string, snap *entity.Snapshot) bool {
		if !first {
			a.printer.Line("")
		}
		first = false
		a.showHeader(entity.Summarize(r, snap))
		err = timeline.Render(a.printer.Out, builder.Build(r, snap, hist), a.tr, a.printer.Heading)
		return err == nil
	})
	return err
}

func (a *app) showHeader(sum entity.Summary) {
	a.printer.Title(fmt.Sprintf("%s %s", a.tr.T("Order"), sum.Reference))
	unknown := a.tr.T("Unknown")
	orUnknown := func(v string) string {
		if v == "" {
			return unknown
		}
		return v
	}
	a.printer.KeyValue(a.tr.T("Status"), orUnknown(sum.Status))
	a.printer.KeyValue(a.tr.T("VIN"), orUnknown(sum.VIN))

	vehicle := a.options.Describe(sum.Options)
	if vehicle.Model == "" {
		vehicle.Model = sum.Model
	}
	if vehicle.Model != "" {
		a.printer.KeyValue(a.tr.T("Model"), vehicle.Model)
	}
	if vehicle.Paint != "" {
		a.printer.KeyValue(a.tr.T("Paint"), vehicle.Paint)
	}
	if vehicle.Interior != "" {
		a.printer.KeyValue(a.tr.T("Interior"), vehicle.Interior)
	}
	if sum.DeliveryTitle != "" {
		a.printer.KeyValue(a.tr.T("Delivery Center"), sum.DeliveryTitle)
	}
	if sum.Window != "" {
		a.printer.KeyValue(a.tr.T("Delivery Window"), sum.Window)
	}

	if decoded := a.options.Decode(sum.Options, false); len(decoded) > 0 {
		a.printer.Line("")
		a.printer.Line(a.printer.Heading(a.tr.T("Configuration")))
		for _, opt := range decoded {
			label := opt.Label
			if !opt.Known {
				label = a.tr.T("Unknown option code")
			}
			a.printer.KeyValue(opt.Code, label)
		}
	}
	a.printer.Line("")
}
