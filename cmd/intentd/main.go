package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/unikron/intent-relay/common/types"
	"github.com/unikron/intent-relay/config"
	"github.com/unikron/intent-relay/engine"
	"github.com/unikron/intent-relay/notify"
	"github.com/unikron/intent-relay/queue"
	"github.com/unikron/intent-relay/quote"
	"github.com/unikron/intent-relay/server"
	"github.com/unikron/intent-relay/session"
	"github.com/unikron/intent-relay/solana"
	"github.com/unikron/intent-relay/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := run(logger); err != nil {
		logger.WithField("error", err).Fatal("Service terminated")
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.New(ctx, cfg.DatabaseURL, cfg.DBTimeout, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	programID, err := sol.PublicKeyFromBase58(cfg.SwapProgramID)
	if err != nil {
		return fmt.Errorf("invalid swap program id: %w", err)
	}

	chain, err := solana.NewClient(ctx, &solana.Config{
		RPCURL:    cfg.SolanaRPCURL,
		ProgramID: programID,
		Keypair:   cfg.RelayerKeypair,
		Timeout:   cfg.RPCTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer chain.Close()

	eng := engine.New(db, chain, logger, cfg.ProtocolFeeBps)
	quoter := quote.NewClient(cfg.JupiterBaseURL, cfg.QuoteTimeout, logger)

	sessions, sessionSweep, err := buildSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	webhook := notify.NewWebhook(cfg.WebhookURL, logger)
	jobs := queue.New(logger, queue.Options{
		Workers:     cfg.QueueWorkers,
		MaxAttempts: cfg.QueueMaxRetries,
		Backoff:     cfg.QueueBackoff,
	})
	registerJobHandlers(jobs, eng, webhook, logger)
	jobs.Start(ctx)
	defer jobs.Stop()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(everySpec(cfg.ExpirySweep), func() {
		if _, err := eng.ExpireSweep(context.Background()); err != nil {
			logger.WithField("error", err).Error("Expiry sweep failed")
		}
	}); err != nil {
		return err
	}
	if sessionSweep != nil {
		if _, err := scheduler.AddFunc(everySpec(cfg.SessionSweep), sessionSweep); err != nil {
			return err
		}
	}
	if _, err := scheduler.AddFunc("@daily", func() {
		jobs.Prune(24 * time.Hour)
	}); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := server.New(eng, quoter, logger, server.Options{
		Sessions:    sessions,
		Jobs:        jobs,
		DB:          db,
		RevealDelay: cfg.RevealDelay,
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildSessionStore picks Redis when configured, the in-memory store
// otherwise. The returned sweep function is nil when the backend expires
// sessions itself.
func buildSessionStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (session.Store, func(), error) {
	if cfg.RedisAddr != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("addr", cfg.RedisAddr).Info("Using Redis session store")
		return redisStore, nil, nil
	}

	memStore := session.NewMemoryStore(cfg.SessionTTL, logger)
	return memStore, func() { memStore.Sweep() }, nil
}

func registerJobHandlers(jobs *queue.Queue, eng *engine.Engine, webhook *notify.Webhook, logger *logrus.Logger) {
	jobs.Register(queue.JobRevealCheck, func(ctx context.Context, job *queue.Job) error {
		var payload struct {
			IntentHash string `json:"intentHash"`
			WebhookURL string `json:"webhookUrl,omitempty"`
		}
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return err
		}

		record, err := eng.Status(ctx, payload.IntentHash)
		if err != nil {
			return queue.Retryable(err)
		}

		if record.Status == types.StatusCommitted {
			logger.WithFields(logrus.Fields{
				"intentHash": payload.IntentHash,
				"expiry":     record.Intent.Expiry,
			}).Warn("Committed intent still awaiting reveal")
			return nil
		}

		event, err := json.Marshal(map[string]string{
			"event":      "status_changed",
			"intentHash": payload.IntentHash,
			"status":     string(record.Status),
		})
		if err != nil {
			return err
		}
		if transient, err := webhook.Send(ctx, payload.WebhookURL, event); err != nil {
			if transient {
				return queue.Retryable(err)
			}
			return err
		}
		return nil
	})

	jobs.Register(queue.JobNotify, func(ctx context.Context, job *queue.Job) error {
		var payload struct {
			WebhookURL string `json:"webhookUrl,omitempty"`
		}
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return err
		}

		transient, err := webhook.Send(ctx, payload.WebhookURL, job.Payload)
		if err == nil {
			return nil
		}
		if transient {
			return queue.Retryable(err)
		}
		return err
	})
}

// everySpec renders a duration as a cron @every spec.
func everySpec(d time.Duration) string {
	return "@every " + d.String()
}
