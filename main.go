package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Vynokris/RTS-AI/agent"
	"github.com/Vynokris/RTS-AI/config"
	"github.com/Vynokris/RTS-AI/influence"
	"github.com/Vynokris/RTS-AI/ipc"
	"github.com/Vynokris/RTS-AI/journal"
	"github.com/Vynokris/RTS-AI/model"
	"github.com/Vynokris/RTS-AI/sim"
	"github.com/Vynokris/RTS-AI/world"
)

const banner = `
██████╗ ████████╗███████╗       █████╗ ██╗
██╔══██╗╚══██╔══╝██╔════╝      ██╔══██╗██║
██████╔╝   ██║   ███████╗█████╗███████║██║
██╔══██╗   ██║   ╚════██║╚════╝██╔══██║██║
██║  ██║   ██║   ███████║      ██║  ██║██║
╚═╝  ╚═╝   ╚═╝   ╚══════╝      ╚═╝  ╚═╝╚═╝

Influence-Driven Faction Intelligence`

func main() {
	var (
		configPath = flag.String("config", "", "path to the match config (defaults when empty)")
		seed       = flag.Int64("seed", 0, "map seed, overrides map.seed (0 keeps the config value)")
		duration   = flag.Duration("duration", -1, "simulated match length, overrides match.duration (0 = until interrupted)")
		speed      = flag.Float64("speed", -1, "pace multiplier, overrides match.speed (0 = as fast as possible)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if *seed != 0 {
		cfg.Map.Seed = *seed
	}
	if *duration >= 0 {
		cfg.Match.Duration = *duration
	}
	if *speed >= 0 {
		cfg.Match.Speed = *speed
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	fmt.Println(banner)

	slog.Info("starting rts-ai", "config", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *configPath); err != nil {
		slog.Error("match failed", "error", err)
		os.Exit(1)
	}
	slog.Info("shutting down")
}

func run(ctx context.Context, cfg config.Config, configPath string) error {
	if cfg.Map.Seed == 0 {
		cfg.Map.Seed = time.Now().UnixNano()
	}
	ids := cfg.FactionIDs()

	terrain, err := world.Generate(cfg.Map, len(ids))
	if err != nil {
		return fmt.Errorf("generate map: %w", err)
	}
	field, err := influence.NewField(influence.Config{
		Extent:      terrain.Map.Extent(),
		Resolution:  cfg.Influence.Resolution,
		TroopWeight: cfg.Influence.TroopWeight,
	}, ids, influence.NewGaussian(cfg.Influence.BlurRadius, cfg.Influence.Sigma, cfg.Influence.Workers))
	if err != nil {
		return fmt.Errorf("influence field: %w", err)
	}
	w, err := world.New(cfg.World, terrain, ids, field)
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}

	runner := sim.New(cfg.Match, w, field)

	var tuner *agent.Tuner
	if configPath != "" && cfg.Decision.ReloadEvery > 0 {
		tuner = agent.NewTuner(configPath, cfg.Decision.ReloadEvery, config.LoadActions)
	}
	for _, fs := range cfg.Factions {
		if !fs.AI {
			slog.Info("faction left uncontrolled", "faction", fs.ID, "name", fs.Name)
			continue
		}
		s := fs.Seed
		if s == 0 {
			s = cfg.Map.Seed + int64(fs.ID) + 1
		}
		a, err := agent.New(agent.Config{
			Faction:  fs.ID,
			Interval: cfg.Decision.Interval,
			Seed:     s,
			Tuning:   cfg.Decision.Tuning,
			Catalog:  cfg.Decision.Actions,
		}, w, w.Commander(), field, w.RivalSource(fs.ID), runner.Report)
		if err != nil {
			return fmt.Errorf("agent %s: %w", fs.Name, err)
		}
		runner.Add(a)
		if tuner != nil {
			tuner.Attach(a)
		}
	}
	if tuner != nil {
		go tuner.Start(ctx)
	}

	var store *journal.Store
	if cfg.Journal.Path != "" {
		if store, err = journal.Open(cfg.Journal.Path); err != nil {
			return err
		}
		defer store.Close()
	}
	var trace *journal.Trace
	if cfg.Journal.Trace != "" {
		if trace, err = journal.OpenTrace(cfg.Journal.Trace); err != nil {
			return fmt.Errorf("open trace: %w", err)
		}
		defer closeTrace(trace)
	}
	matchID := "local"
	if store != nil {
		if matchID, err = store.BeginMatch(cfg.Map.Seed, len(ids), cfg); err != nil {
			return err
		}
	}
	recorder := journal.NewRecorder(store, trace, matchID)

	hub := ipc.NewHub()
	stopObserver, err := startObserver(ctx, cfg.Observer, hub)
	if err != nil {
		return err
	}
	defer stopObserver()

	factions := make([]uint32, len(ids))
	for i, id := range ids {
		factions[i] = uint32(id)
	}
	if err := hub.PublishMatch(ipc.MatchMessage{ID: matchID, Cols: cfg.Map.Cols, Rows: cfg.Map.Rows, Factions: factions}); err != nil {
		return err
	}

	runner.OnReport = func(rep agent.Report) {
		if err := recorder.Report(rep); err != nil {
			slog.Error("trace write failed", "error", err)
		}
		hub.PublishReport(rep)
	}
	lastHeatmap := time.Duration(-1)
	runner.OnInfluence = func(simTime time.Duration) {
		every := cfg.Observer.HeatmapEvery
		if every <= 0 || (lastHeatmap >= 0 && simTime-lastHeatmap < every) {
			return
		}
		lastHeatmap = simTime
		hub.PublishHeatmaps(field, ids, simTime)
	}

	slog.Info("match ready", "match", matchID, "seed", cfg.Map.Seed, "factions", len(ids), "map", fmt.Sprintf("%dx%d", cfg.Map.Cols, cfg.Map.Rows))
	res := runner.Run(ctx)

	end := ipc.MatchMessage{ID: matchID, Cols: cfg.Map.Cols, Rows: cfg.Map.Rows, Factions: factions,
		Ended: true, Frames: res.Frames, SimMs: res.SimTime.Milliseconds()}
	if res.Winner != model.Neutral {
		winner := uint32(res.Winner)
		end.Winner = &winner
	}
	if err := hub.PublishMatch(end); err != nil {
		slog.Error("publish match end failed", "error", err)
	}

	if store != nil {
		store.EndMatch(matchID, res.Frames, res.SimTime, res.Winner)
		store.Sync()
		summarize(store, matchID)
	}
	slog.Info("match summary",
		"match", matchID,
		"frames", humanize.Comma(int64(res.Frames)),
		"simTime", res.SimTime,
		"winner", res.Winner,
	)
	return nil
}

func summarize(store *journal.Store, matchID string) {
	counts, err := store.ActionCounts(matchID)
	if err != nil {
		slog.Error("journal summary failed", "error", err)
		return
	}
	for faction, byAction := range counts {
		slog.Info("decisions", "faction", faction, "actions", byAction)
	}
	if n := store.Dropped(); n > 0 {
		slog.Warn("journal dropped reports", "count", n)
	}
}

func closeTrace(t *journal.Trace) {
	if err := t.Close(); err != nil {
		slog.Error("trace close failed", "path", t.Path(), "error", err)
		return
	}
	if fi, err := os.Stat(t.Path()); err == nil {
		slog.Info("trace written", "path", t.Path(), "size", humanize.Bytes(uint64(fi.Size())))
	}
}

// startObserver opens the websocket endpoint and the socket tap when
// configured. The returned func stops both and drops every observer.
func startObserver(ctx context.Context, cfg config.ObserverConfig, hub *ipc.Hub) (func(), error) {
	closers := []func(){hub.Close}
	stopAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Socket != "" {
		// Unix sockets leave behind a file on unclean shutdown; remove it so we can rebind.
		if err := os.RemoveAll(cfg.Socket); err != nil {
			return stopAll, fmt.Errorf("clean up socket %s: %w", cfg.Socket, err)
		}
		ln, err := net.Listen("unix", cfg.Socket)
		if err != nil {
			return stopAll, fmt.Errorf("listen on socket %s: %w", cfg.Socket, err)
		}
		slog.Info("listening on domain socket", "path", cfg.Socket)
		tapCtx, cancel := context.WithCancel(ctx)
		go hub.ServeTap(tapCtx, ln)
		closers = append(closers, func() {
			cancel()
			os.Remove(cfg.Socket)
		})
	}

	if cfg.Addr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/observe", hub.WSHandler())
		mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(http.StatusOK)
			_, _ = rw.Write([]byte("ok\n"))
		})
		srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			stopAll()
			return func() {}, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
		}
		slog.Info("observer listening", "addr", ln.Addr().String(), "path", "/v1/observe")
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("observer server failed", "error", err)
			}
		}()
		closers = append(closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}
	return stopAll, nil
}
