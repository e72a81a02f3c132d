package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/voteparty/knockout"
	"github.com/voteparty/knockout/api"
	"github.com/voteparty/knockout/network"
	"github.com/voteparty/knockout/party"
	"github.com/voteparty/knockout/store"
)

const envPrefix = "KNOCKOUT"

func flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("knockoutd", pflag.ExitOnError)

	fs.String("config", "", "Path to an optional YAML config file")
	fs.String("log-level", "info", "Log level (trace, debug, info, warn, error)")

	fs.String("name", "", "Name of the party to host")
	fs.String("admin", "", "Hex address allowed to start rounds")
	fs.String("metadata", "", "Opaque metadata tag carried with the party")
	fs.Uint32("house-split", 0, "Percentage of the pot kept by the house")
	fs.Uint32("winner-split", 0, "Percentage of the pot paid to the winner")
	fs.Duration("round-duration", 10*time.Minute, "Length of each voting round")
	fs.Uint32("total-rounds", 3, "Number of rounds the party plans to run")
	fs.Uint32("max-votes", 5, "Recipient budget per voter per round")
	fs.Uint64("vote-weight", 1, "Weight applied per recipient")
	fs.Bool("late-entrants", false, "Keep registration open after round one starts")
	fs.Bool("public-rounds", false, "Let anyone start the next round")
	fs.Uint64("elimination-percentile", 0, "Percentile of candidates cut per round, 0 disables")
	fs.Bool("eliminate-top", false, "Cut the leaders instead of the stragglers")

	fs.String("db-path", "knockout.db", "Directory for the snapshot database")
	fs.String("listen-addr", ":8080", "host:port for the HTTP API")
	fs.Bool("verify-signatures", false, "Require wallet signatures on mutating requests")
	fs.String("metrics-addr", "", "host:port for Prometheus metrics, empty disables")
	fs.String("p2p-addr", "", "Multiaddr to announce events on, empty disables gossip")

	return fs
}

func loadConfig(args []string) (*viper.Viper, error) {
	fs := flagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(os.ExpandEnv(file))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return v, nil
}

func parameters(v *viper.Viper) (party.Parameters, error) {
	params := party.Parameters{
		Name:                   v.GetString("name"),
		Metadata:               v.GetString("metadata"),
		HouseSplit:             v.GetUint32("house-split"),
		WinnerSplit:            v.GetUint32("winner-split"),
		RoundDuration:          v.GetDuration("round-duration"),
		TotalRounds:            v.GetUint32("total-rounds"),
		MaxVotesPerRound:       v.GetUint32("max-votes"),
		DefaultVoteWeight:      v.GetUint64("vote-weight"),
		AllowLateEntrants:      v.GetBool("late-entrants"),
		AllowPublicStartAndEnd: v.GetBool("public-rounds"),
		EliminationNumerator:   v.GetUint64("elimination-percentile"),
		EliminateTop:           v.GetBool("eliminate-top"),
	}
	if admin := v.GetString("admin"); admin != "" {
		if !common.IsHexAddress(admin) {
			return party.Parameters{}, fmt.Errorf("admin %q is not a hex address", admin)
		}
		params.Admin = common.HexToAddress(admin)
	} else if !params.AllowPublicStartAndEnd {
		return party.Parameters{}, fmt.Errorf("either --admin or --public-rounds is required")
	}
	return params, params.Validate()
}

func run() error {
	v, err := loadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	params, err := parameters(v)
	if err != nil {
		return err
	}

	st, err := store.OpenLevelDB(v.GetString("db-path"))
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	defer st.Close()

	notifier := party.Notifier(eventLogger{logger: logger.With().Str("component", "party").Logger()})

	var announcer *network.Announcer
	if addr := v.GetString("p2p-addr"); addr != "" {
		host, err := libp2p.New(libp2p.ListenAddrStrings(addr))
		if err != nil {
			return fmt.Errorf("starting libp2p host: %w", err)
		}
		defer host.Close()
		ps, err := pubsub.NewGossipSub(context.Background(), host)
		if err != nil {
			return fmt.Errorf("starting gossipsub: %w", err)
		}
		announcer, err = network.NewAnnouncer(ps, params.Name, logger.With().Str("component", "network").Logger())
		if err != nil {
			return fmt.Errorf("joining announcement topic: %w", err)
		}
		defer announcer.Close()
		notifier = party.CombineNotifiers(notifier, announcer)
		logger.Info().Str("addr", addr).Stringer("peer", host.ID()).Msg("announcing events over gossipsub")
	}

	registry := prometheus.NewRegistry()
	opts := []party.Option{
		party.WithLogger(logger.With().Str("component", "engine").Logger()),
		party.WithNotifier(notifier),
		party.WithMetrics(registry),
	}

	engine, err := knockout.Open(st, params, opts...)
	if err != nil {
		return fmt.Errorf("opening party: %w", err)
	}
	if n := engine.RoundCount(); n > 0 {
		logger.Info().Int("rounds", n).Int("registered", engine.RegisteredCount()).
			Msg("resumed party from snapshot")
	}

	if addr := v.GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		logger.Info().Str("addr", addr).Msg("serving metrics")
	}

	server := api.NewServer(api.Config{
		ListenAddr:       v.GetString("listen-addr"),
		VerifySignatures: v.GetBool("verify-signatures"),
	}, engine, st, logger.With().Str("component", "api").Logger())

	errCh := make(chan error, 1)
	go func() { errCh <- server.Listen() }()
	logger.Info().Str("addr", v.GetString("listen-addr")).Str("party", params.Name).Msg("knockoutd running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info().Stringer("signal", sig).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("api server stopped: %w", err)
	}

	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("shutting down api server")
	}
	snap, err := engine.Snapshot()
	if err != nil {
		return fmt.Errorf("taking final snapshot: %w", err)
	}
	if err := st.Save(snap); err != nil {
		return fmt.Errorf("saving final snapshot: %w", err)
	}
	return nil
}

// eventLogger writes every engine event to the log.
type eventLogger struct {
	logger zerolog.Logger
}

func (l eventLogger) OnUserRegistered(ev party.UserRegistered) {
	l.logger.Info().Stringer("address", ev.Address).Msg("user registered")
}

func (l eventLogger) OnRoundStarted(ev party.RoundStarted) {
	l.logger.Info().Int("round", ev.Number).Time("end", ev.End).Msg("round started")
}

func (l eventLogger) OnRoundEnded(ev party.RoundEnded) {
	l.logger.Info().Int("round", ev.Number).Msg("round ended")
}

func (l eventLogger) OnVoteCast(ev party.VoteCast) {
	l.logger.Info().Stringer("voter", ev.Voter).Int("round", ev.RoundIndex+1).
		Int("recipients", len(ev.Recipients)).Msg("vote cast")
}

func (l eventLogger) OnCandidateEliminated(ev party.CandidateEliminated) {
	l.logger.Info().Stringer("address", ev.Address).Int("round", ev.RoundIndex+1).Msg("candidate eliminated")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "knockoutd: %v\n", err)
		os.Exit(1)
	}
}
