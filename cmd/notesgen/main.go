package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"therapy_notes_generator/internal/app"
	domainTelegram "therapy_notes_generator/internal/domain/telegram"
	"therapy_notes_generator/internal/domain/textgen"
	"therapy_notes_generator/internal/infra/config"
	idb "therapy_notes_generator/internal/infra/database"
	"therapy_notes_generator/internal/infra/docx"
	"therapy_notes_generator/internal/infra/gemini"
	"therapy_notes_generator/internal/infra/logger"
	"therapy_notes_generator/internal/infra/output"
	"therapy_notes_generator/internal/infra/scheduler"
	"therapy_notes_generator/internal/infra/telegram"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func main() {
	runNow := flag.Bool("run-now", false, "generate notes once for -date and exit instead of waiting for the schedule")
	dateFlag := flag.String("date", "", "run date (YYYY-MM-DD) for -run-now, defaults to today")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg)
	mainLogger := log.WithField("component", "main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"batch_size":  cfg.NotesBatchSize,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL, idb.PoolForBatch(cfg.NotesBatchSize), mainLogger)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully")

	if cfg.AutoMigrate {
		if err := idb.ApplySchema(ctx, db); err != nil {
			mainLogger.WithError(err).Fatal("Could not apply database schema")
		}
		mainLogger.Info("Database schema applied")
	}

	tracks, err := config.LoadTracks(cfg.TracksConfigPath)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not load program tracks")
	}

	// Initialize Repositories
	catalogRepo := idb.NewPostgresCatalogRepository(db)
	groupRepo := idb.NewPostgresGroupRepository(db)
	scheduleRepo := idb.NewPostgresScheduleRepository(db)
	attendanceRepo := idb.NewPostgresAttendanceRepository(db)

	entry := logrus.NewEntry(log)

	var generator textgen.Generator
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.New(gemini.Config{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiModel,
			Timeout:    cfg.GeminiTimeout,
			MaxRetries: 2,
		}, entry)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Gemini client")
		}
		generator = client
	} else {
		mainLogger.Warn("GEMINI_API_KEY not set, notes will use fallback text only")
	}

	renderer, err := docx.New(cfg.TemplatesDir, docx.DefaultFiles(), entry)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not load document templates")
	}

	var tgClient domainTelegram.Client
	if cfg.ReportsEnabled() {
		bot, err := telegram.NewReportBot(cfg.TelegramToken)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		tgClient = telegram.NewTelebotAdapter(bot)
	} else {
		mainLogger.Info("Telegram reporting not configured, run reports are logged only")
	}

	rotation := app.NewRotationEngine(catalogRepo, entry)
	notesService := app.NewNotesService(
		groupRepo,
		scheduleRepo,
		attendanceRepo,
		tracks,
		app.NewJobBuilder(rotation, entry),
		app.NewBatchExecutor(cfg.NotesBatchSize, entry),
		app.NewNoteComposer(app.NewTextService(generator, entry), rotation, renderer, cfg.TherapistName, entry),
		app.NewArchiveAssembler(entry),
		entry,
	)
	weeklyRun := app.NewWeeklyRunService(
		groupRepo,
		notesService,
		output.NewDirSink(cfg.OutputDir, entry),
		app.NewReportService(tgClient, cfg.ManagerTelegramID, entry),
		entry,
	)

	runner := scheduler.RunnerFunc(func(ctx context.Context, date time.Time) error {
		runLog := mainLogger.WithField("run_id", uuid.NewString())
		report, err := weeklyRun.RunForDate(ctx, date)
		if err != nil {
			return err
		}
		runLog.WithFields(logrus.Fields{
			"groups":    len(report.Outcomes),
			"generated": report.Generated(),
		}).Info("Weekly run completed")
		return nil
	})

	if *runNow {
		date, err := parseRunDate(*dateFlag)
		if err != nil {
			mainLogger.WithError(err).Fatal("Invalid -date")
		}
		runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
		if err := runner.RunOnce(runCtx, date); err != nil {
			mainLogger.WithError(err).Error("Weekly notes run failed")
			os.Exit(1)
		}
		return
	}

	notesScheduler := scheduler.NewWeeklyNotesScheduler(runner, entry, cfg.CronSpecWeekly, cfg.RunTimeout)
	if err := notesScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not schedule weekly notes job")
	}
	mainLogger.Info("Application setup complete, waiting for scheduled runs")

	// Graceful shutdown
	<-ctx.Done() // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	notesScheduler.Stop()
	mainLogger.Info("Application shut down gracefully")
}

func parseRunDate(v string) (time.Time, error) {
	if v == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", v)
}
