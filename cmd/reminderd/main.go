// Command reminderd schedules reminders and delivers their notifications.
//
// Reminders are managed through MCP tools served on stdio. Each reminder may
// carry several trigger instants; when one arrives a notification is shown
// with "open" and "mark complete" actions.
//
// Usage:
//
//	./reminderd                   # Serve MCP on stdio and deliver reminders
//	./reminderd --config FILE     # Use a specific config file
//	./reminderd --no-stdio        # Deliver reminders only, until interrupted
//	./reminderd --check           # Validate configuration and exit
//	./reminderd --help            # Show help
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/notexe/reminderd/internal/action"
	"github.com/notexe/reminderd/internal/alarm"
	"github.com/notexe/reminderd/internal/config"
	"github.com/notexe/reminderd/internal/delivery"
	"github.com/notexe/reminderd/internal/logging"
	"github.com/notexe/reminderd/internal/notify"
	"github.com/notexe/reminderd/internal/notify/console"
	"github.com/notexe/reminderd/internal/notify/telegram"
	"github.com/notexe/reminderd/internal/reminder"
	"github.com/notexe/reminderd/internal/scheduler"
	"github.com/notexe/reminderd/internal/service"
	"github.com/notexe/reminderd/internal/tools"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	configPath string
	noStdio    bool
	check      bool
}

func main() {
	var opts options

	flag.StringVar(&opts.configPath, "config", config.GetDefaultConfigPath(), "path to config file")
	flag.BoolVar(&opts.noStdio, "no-stdio", false, "do not serve MCP on stdio")
	flag.BoolVar(&opts.check, "check", false, "validate configuration and exit")
	flag.Usage = printHelp
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if opts.check {
		fmt.Printf("Configuration OK (database: %s, notifications: %s)\n",
			cfg.Database.Path, cfg.Notification.Backend)
		return nil
	}

	level, _ := cfg.LogLevel()
	// stdout carries the MCP protocol
	logger := logging.Setup(os.Stderr, level, cfg.Log.Format)

	if err := cfg.EnsureDatabaseDir(); err != nil {
		return err
	}

	store, err := reminder.NewStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier, detail, tg := newNotifier(cfg, store)

	deliverer := delivery.NewHandler(notifier, delivery.Texts{
		TitleFallback: cfg.Notification.TitleFallback,
		Body:          cfg.Notification.Body,
		OpenLabel:     cfg.Notification.OpenLabel,
		CompleteLabel: cfg.Notification.CompleteLabel,
	})

	exact := cfg.Scheduler.ExactAlarms
	timers := alarm.NewTimers(deliverer.Deliver, alarm.WithExactAlarmCheck(func() bool { return exact }))
	defer timers.Close()

	sched := scheduler.New(timers, nil)
	actions := action.NewHandler(store, sched, notifier, cfg.Action.MaxInFlight)
	svc := service.New(store, sched, notifier, detail)

	existing, err := store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load reminders: %w", err)
	}
	sched.Restore(ctx, existing)

	g, gctx := errgroup.WithContext(ctx)

	if tg != nil {
		poller := telegram.NewPoller(tg, telegram.Handlers{
			Complete: actions.Go,
			Open:     svc.ShowDetail,
		}, cfg.Telegram.PollTimeout)
		g.Go(func() error {
			return poller.Run(gctx)
		})
	}

	if !opts.noStdio {
		mcpServer := tools.NewServer(svc, actions)
		stdio := server.NewStdioServer(mcpServer.MCPServer())
		stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

		g.Go(func() error {
			err := stdio.Listen(gctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
				return fmt.Errorf("mcp server: %w", err)
			}
			// The client closed stdin: nothing else will talk to us.
			stop()
			return nil
		})
	}

	logger.Info("reminderd started",
		slog.String("database", cfg.Database.Path),
		slog.String("notifications", cfg.Notification.Backend),
		slog.Int("reminders", len(existing)),
		slog.Bool("stdio", !opts.noStdio),
	)

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()

	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if werr := actions.Wait(waitCtx); werr != nil {
		logger.Warn("pending actions did not finish", logging.Err(werr))
	}

	logger.Info("reminderd stopped")
	return err
}

// newNotifier picks the notification backend. The Telegram client is
// returned as well so its button presses can be polled.
func newNotifier(cfg *config.Config, store *reminder.Store) (notify.Notifier, notify.DetailView, *telegram.Client) {
	if cfg.Notification.Backend == config.BackendTelegram {
		client := telegram.NewClient(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		n := telegram.NewNotifier(client, store)
		return n, n, client
	}

	n := console.NewNotifier(os.Stderr, cfg.Notification.Colored)
	return n, n, nil
}

func printHelp() {
	fmt.Println(`reminderd - reminder scheduling and delivery

USAGE:
    reminderd [FLAGS]

FLAGS:
    --config FILE   Config file (default: ~/.reminderd/config.yaml)
    --no-stdio      Do not serve MCP on stdio; run until interrupted
    --check         Validate configuration and exit
    --help, -h      Show this help

ENVIRONMENT:
    REMINDER_<SECTION>__<KEY>  Override any config key, e.g.
                               REMINDER_NOTIFICATION__BACKEND=telegram
    REMINDER_DB_PATH           Path to SQLite database file
    TELEGRAM_BOT_TOKEN         Bot token when telegram.bot_token is unset
    TELEGRAM_CHAT_ID           Chat ID when telegram.chat_id is unset

TOOLS:
    add_reminder            Add a reminder (title, description, dates)
    list_reminders          List reminders (optional status filter)
    get_reminder            Get one reminder
    update_reminder         Update fields and reschedule alarms
    set_reminder_completed  Complete or reopen a reminder
    complete_reminder       Same as pressing "mark complete" on a notification
    delete_reminder         Delete a reminder and its alarms
    open_reminder           Same as tapping a notification
    pending_alarms          Alarms registered for a reminder

CONFIGURATION:
    Add to your MCP client configuration:
    {
      "mcpServers": {
        "reminder": {
          "command": "/path/to/reminderd",
          "args": []
        }
      }
    }`)
}
