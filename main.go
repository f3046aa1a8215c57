package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"visa-rescheduler/client"
	"visa-rescheduler/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// The currently held appointment date comes in as the first process
	// argument; without it there is nothing to compare polled dates against.
	if len(os.Args) < 2 {
		log.Fatal("usage: visa-rescheduler <current-appointment-date YYYY-MM-DD>")
	}
	heldDate := os.Args[1]
	if _, err := time.Parse("2006-01-02", heldDate); err != nil {
		log.Fatalf("bad appointment date %q: expected YYYY-MM-DD", heldDate)
	}

	logger := client.NewLogger(os.Stdout)

	var proxies *client.ProxyRing
	if cfg.ProxyFile != "" {
		proxies, err = client.LoadProxyRing(cfg.ProxyFile)
		if err != nil {
			log.Fatalf("load proxies: %v", err)
		}
		logger.Infof("loaded %d proxies from %s", proxies.Len(), cfg.ProxyFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(cfg, logger)
	sup := client.NewSupervisor(
		c, proxies, logger, heldDate,
		time.Duration(cfg.RetryTimeout)*time.Second,
		time.Duration(cfg.BanCooldownSeconds)*time.Second,
	)

	logger.Infof("watching for a date earlier than %s at facility %s", heldDate, cfg.FacilityID)
	if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
	logger.Infof("stopped")
}
