package main

import (
	"context"
	"flag"
	"fmt"

	"savium-invest-go/internal/common"
	"savium-invest-go/internal/config"
	"savium-invest-go/internal/models"

	"go.uber.org/zap"
)

func printPending(pending []models.WebhookError) {
	for i, rec := range pending {
		isLast := i == len(pending)-1
		eventType := rec.EventType
		if eventType == "" {
			eventType = "unknown"
		}
		fmt.Printf("%s %s  %-32s %s\n", common.BoxPrefix(isLast), rec.Timestamp.Format("2006-01-02 15:04:05"), eventType, rec.EventId)
		fmt.Printf("%s    error: %s\n", detailPrefix(isLast), rec.Error)
	}
}

func detailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	apply := flag.Bool("apply", false, "Replay pending webhook failures (default: list only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	pending, err := services.Gateway.PendingErrors(ctx)
	if err != nil {
		logger.Fatal("Failed to list webhook errors", zap.Error(err))
	}

	common.PrintHeader("PENDING WEBHOOK FAILURES", common.DefaultWidth)
	if len(pending) == 0 {
		common.PrintFooter("Nothing to replay", common.DefaultWidth)
		return
	}
	printPending(pending)

	if !*apply {
		common.PrintFooter(fmt.Sprintf("%d pending failures (run with -apply to replay)", len(pending)), common.DefaultWidth)
		return
	}

	report, err := services.Gateway.ReplayAll(ctx)
	if err != nil {
		logger.Fatal("Replay failed", zap.Error(err))
	}

	common.PrintFooter(fmt.Sprintf("REPLAY: %d replayed, %d skipped, %d failed", report.Replayed, report.Skipped, report.Failed), common.DefaultWidth)
	logger.Info("Replay completed",
		zap.Int("replayed", report.Replayed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
}
