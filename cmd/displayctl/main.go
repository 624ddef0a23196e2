package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/displaylink/internal/client"
	"github.com/danmuck/displaylink/internal/config"
	"github.com/danmuck/displaylink/internal/logging"
	"github.com/danmuck/displaylink/internal/protocol/packet"
)

func main() {
	configPath := flag.String("config", "", "path to a displayctl TOML config")
	host := flag.String("host", "", "server host (overrides config)")
	port := flag.Int("port", 0, "server port (overrides config)")
	clientID := flag.String("client-id", "", "identity announced to the server")
	user := flag.String("user", "", "login user; empty skips login")
	secret := flag.String("secret", "", "login secret")
	reconnect := flag.Bool("reconnect", false, "reconnect with backoff after a dropped session")
	flag.Parse()

	logging.ConfigureRuntime()
	log := logging.Logger("displayctl")

	cfg, err := resolveConfig(*configPath, *host, *port, *clientID)
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, cfg, *user, *secret, *reconnect); err != nil {
		log.Error().Err(err).Msg("session ended with failure")
		os.Exit(1)
	}
}

func resolveConfig(path, host string, port int, clientID string) (client.Config, error) {
	cfg := client.DefaultConfig()
	cfg.ClientID = "displayctl"
	if path != "" {
		fileCfg, err := config.LoadClientConfig(path)
		if err != nil {
			return client.Config{}, err
		}
		cfg = fileCfg.SessionConfig()
	}
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.Port = port
	}
	if clientID != "" {
		cfg.ClientID = clientID
	}
	return cfg, cfg.WithDefaults().Validate()
}

// run drives one session at a time. Retry lives here, outside the session
// core: every attempt gets a fresh client.
func run(ctx context.Context, log zerolog.Logger, cfg client.Config, user, secret string, reconnect bool) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	backoff := client.DefaultBackoff()

	attempt := 0
	for {
		attempt++
		err := runSession(ctx, log, cfg, user, secret)
		if ctx.Err() != nil || !reconnect {
			return err
		}
		delay := client.NextBackoffDelay(backoff, attempt, rng)
		log.Warn().Err(err).Dur("delay", delay).Int("attempt", attempt).Msg("session ended; reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func runSession(ctx context.Context, log zerolog.Logger, cfg client.Config, user, secret string) error {
	c, err := client.New(cfg,
		client.WithLogger(log),
		client.WithDispatch(printPacket(log)),
	)
	if err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	if err := c.AwaitReady(cfg.ConnectTimeout + cfg.HandshakeTimeout); err != nil {
		<-c.Done()
		return err
	}

	if err := c.Send(packet.Hello{ClientID: cfg.ClientID}); err != nil {
		return err
	}
	if user != "" {
		if err := c.Send(packet.Login{User: user, Secret: secret}); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		if err := c.Disconnect(); err != nil {
			log.Warn().Err(err).Msg("disconnect failed")
		}
		return <-runErr
	case err := <-runErr:
		return err
	}
}

func printPacket(log zerolog.Logger) client.DispatchFunc {
	return func(p packet.Packet) {
		switch v := p.(type) {
		case packet.Info:
			fmt.Printf("[%s] %s\n%s\n", v.InfoID, v.Title, v.Body)
		case packet.ServerError:
			log.Warn().Uint32("code", v.Code).Str("message", v.Message).Msg("server error")
		case packet.AuthGrant:
			log.Info().Msg("authenticated")
		case packet.Pong:
			log.Debug().Uint64("ts", v.TimestampMS).Msg("pong")
		}
	}
}
