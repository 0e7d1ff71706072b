package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"response_analytics/config"
	"response_analytics/internal/app"
	"response_analytics/internal/store"
)

const historyLimit = 20

func main() {
	if applied := config.LoadDotEnv(".env"); len(applied) > 0 {
		log.Printf("loaded %d settings from .env", len(applied))
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	application, err := app.New(cfg, os.Stdout)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	mode := "auto"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}
	switch mode {
	case "runs":
		if len(os.Args) > 2 {
			run, lines, err := application.RunLog(ctx, os.Args[2])
			if err != nil {
				log.Fatalf("history: %v", err)
			}
			fmt.Printf("run %s trigger=%s status=%s\n", run.ID, run.Trigger, run.Status)
			for _, line := range lines {
				fmt.Println(line)
			}
			return
		}
		runs, err := application.History(ctx, historyLimit)
		if err != nil {
			log.Fatalf("history: %v", err)
		}
		writeHistory(os.Stdout, runs)
	case "once":
		runOnce(ctx, application)
	case "serve":
		if err := application.Run(ctx); err != nil {
			log.Fatalf("run: %v", err)
		}
	case "auto":
		if cfg.WatchInputs || cfg.Schedule != "" {
			if err := application.Run(ctx); err != nil {
				log.Fatalf("run: %v", err)
			}
			return
		}
		runOnce(ctx, application)
	default:
		fmt.Fprintf(os.Stderr, "usage: %s [auto|once|serve|runs [run-id]]\n", os.Args[0])
		os.Exit(2)
	}
}

func runOnce(ctx context.Context, application *app.App) {
	res, err := application.RunOnce(ctx, "manual")
	if err != nil {
		application.Close()
		log.Fatalf("run: %v", err)
	}
	for stage, msg := range res.SinkErrors {
		log.Printf("warning: %s output failed: %s", stage, msg)
	}
}

func writeHistory(w io.Writer, runs []store.Run) {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "-"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			r.ID[:8],
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Trigger,
			r.Status,
			finished,
			strconv.Itoa(r.Counts["joined"]),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Run", "Started", "Trigger", "Status", "Duration", "Joined").
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}
