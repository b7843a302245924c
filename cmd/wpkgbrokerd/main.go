// wpkgbrokerd is a Windows service that brokers on-demand execution of
// the wpkg.js deployer on behalf of unprivileged local users, over a
// named pipe, with impersonation-based caller authorization.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wpkg-gp/wpkgbroker/internal/audit"
	"github.com/wpkg-gp/wpkgbroker/internal/config"
	"github.com/wpkg-gp/wpkgbroker/internal/eventlog"
	"github.com/wpkg-gp/wpkgbroker/internal/ipc"
	"github.com/wpkg-gp/wpkgbroker/internal/logging"
	"github.com/wpkg-gp/wpkgbroker/internal/reboot"
	"github.com/wpkg-gp/wpkgbroker/internal/service"
	"github.com/wpkg-gp/wpkgbroker/internal/share"
	"github.com/wpkg-gp/wpkgbroker/internal/updater"
)

var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "", "Config file path (optional)")
	installDir := flag.String("install-dir", `C:\Program Files\wpkg-gp`, "Directory containing the broker binary")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("wpkgbrokerd %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("[main] wpkgbrokerd v%s starting...", Version)

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	logging.SetLevel(cfg.WpkgVerbosity)
	logging.Infof("[main] logging started with verbosity: %d", cfg.WpkgVerbosity)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	connector := share.New(cfg.WpkgCommand, share.Config{
		NetworkUsername:                cfg.WpkgNetworkUsername,
		NetworkPassword:                cfg.WpkgNetworkPassword,
		TestConnectionHost:             cfg.TestConnectionHost,
		TestConnectionPort:             cfg.TestConnectionPort,
		TestConnectionTries:            cfg.TestConnectionTries,
		TestConnectionSleepBeforeRetry: time.Duration(cfg.TestConnectionSleepBeforeRetry) * time.Second,
		ConnectionTries:                cfg.ConnectionTries,
		ConnectionSleepBeforeRetry:     time.Duration(cfg.ConnectionSleepBeforeRetry) * time.Second,
	}, share.WNetMounter{})

	rebootHandler := reboot.New(cfg.RebootMarkerPath(), reboot.SystemRebooter{})

	auditLog, err := audit.Open(cfg.AuditPath())
	if err != nil {
		logging.Errorf("[main] audit log unavailable, run history will not be recorded: %v", err)
	} else {
		defer auditLog.Close()
	}

	elog := eventlog.Open()
	defer elog.Close()

	updr := updater.New(cfg.DataDir, *installDir, Version, service.ServiceName)
	updr.CheckRollbackNeeded()

	srv := ipc.New(cfg, ipc.ImpersonationAuthorizer{}, connector, rebootHandler, auditLogOrNil(auditLog), hostname)

	run := func(ctx context.Context) error {
		if err := srv.Start(); err != nil {
			return err
		}
		elog.Started()
		if auditLog != nil {
			go watchForUpdate(ctx, cfg, updr, auditLog)
		}
		<-ctx.Done()
		return nil
	}

	if service.IsWindowsService() {
		stop := func() int64 {
			connCount := srv.Stop()
			elog.Stopped(connCount)
			return connCount
		}
		handler := &service.BrokerService{RunFunc: run, StopFunc: stop}
		if err := service.Run(handler); err != nil {
			log.Fatalf("[main] service run failed: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Infof("[main] shutdown signal received")
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("[main] %v", err)
	}
	connCount := srv.Stop()
	elog.Stopped(connCount)
	logging.Infof("[main] stopped after processing %d connections", connCount)
}

func auditLogOrNil(l *audit.Log) ipc.AuditLog {
	if l == nil {
		return nil
	}
	return l
}

// watchForUpdate periodically checks the broker's own run-history audit
// trail for a streak of failed Execute/Query runs and, if one is found
// and an update has been configured, pulls and applies it. This is the
// broker's update trigger in place of a remote heartbeat response: there
// is no control server to poll, so the broker watches its own track
// record instead.
func watchForUpdate(ctx context.Context, cfg *config.Config, updr *updater.Updater, auditLog *audit.Log) {
	interval := time.Duration(cfg.UpdateCheckIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cfg.UpdateURL == "" || cfg.UpdateVersion == "" || cfg.UpdateVersion == Version {
				continue
			}
			threshold := cfg.UpdateFailureThreshold
			if threshold <= 0 {
				threshold = 3
			}
			failures, err := auditLog.ConsecutiveFailures(threshold)
			if err != nil {
				logging.Errorf("[main] update check: reading audit trail failed: %v", err)
				continue
			}
			if failures < threshold {
				continue
			}
			logging.Errorf("[main] %d consecutive failed runs, attempting self-update to v%s", failures, cfg.UpdateVersion)
			if err := updr.CheckAndUpdate(ctx, cfg.UpdateVersion, cfg.UpdateURL, cfg.UpdateSHA256); err != nil {
				logging.Errorf("[main] self-update failed: %v", err)
			}
		}
	}
}
