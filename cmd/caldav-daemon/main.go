package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Truenya/caldav-daemon/config"
	"github.com/Truenya/caldav-daemon/internal/bot"
	"github.com/Truenya/caldav-daemon/internal/clients/caldav"
	"github.com/Truenya/caldav-daemon/internal/scheduler"
	"github.com/Truenya/caldav-daemon/internal/service"
	"github.com/Truenya/caldav-daemon/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "caldav-daemon",
	Short: "Notify about upcoming CalDAV events",
	Long: `caldav-daemon periodically reads every event from the CalDAV server and
sends a Telegram notification shortly before each one starts.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "caldav-daemon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadDaemon()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	var notifier scheduler.Notifier = bot.LogSender{}
	if cfg.TelegramToken != "" {
		tgBot, err := bot.New(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return fmt.Errorf("init bot: %w", err)
		}
		notifier = tgBot
	} else {
		log.Println("TELEGRAM_BOT_TOKEN is not set, notifications go to the log")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := caldav.NewClient(cfg.BaseURL, cfg.Username, cfg.Password)
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return err
	}

	sched := scheduler.New(service.NewFetchService(client, cfg.Timezone), store, notifier, scheduler.Options{
		RefreshPeriod: cfg.RefreshPeriod,
		NotifyBefore:  cfg.NotifyBefore,
		ServerOffset:  cfg.ServerOffset,
		Timezone:      cfg.Timezone,
	})

	log.Println("caldav-daemon started")

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("caldav-daemon stopped")
	return nil
}
