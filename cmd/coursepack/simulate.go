package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mind-engage/coursepack/internal/bridge"
	"github.com/mind-engage/coursepack/internal/config"
	"github.com/mind-engage/coursepack/internal/content"
	"github.com/mind-engage/coursepack/internal/db"
	"github.com/mind-engage/coursepack/internal/host"
	"github.com/mind-engage/coursepack/internal/logger"
	"github.com/mind-engage/coursepack/internal/runtime"
	"github.com/mind-engage/coursepack/internal/storage"
)

type simulateFlags struct {
	driver  string
	dsn     string
	address string
	pass    []string
	fail    []string
	reset   bool
	verbose bool
	// bridge is a gateway enrollment URL such as
	// http://localhost:8080/bridge/<enrollment>. When set, state is read
	// from and reported to the gateway instead of the database.
	bridge string
	token  string
	// session keeps the runtime open, ticking heartbeats, before it
	// terminates.
	session   time.Duration
	heartbeat time.Duration
}

func newSimulateCmd() *cobra.Command {
	var f simulateFlags
	cmd := &cobra.Command{
		Use:   "simulate <document>",
		Short: "Play a session in standalone mode against durable storage",
		Long: `Runs the course runtime as an offline learner would, keeping state in
the kv table of the given database. Repeated runs with the same --address
resume where the previous one stopped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.driver, "db-driver", "sqlite", "sqlite or postgres")
	cmd.Flags().StringVar(&f.dsn, "db-dsn", "", "database DSN (default ./coursepack.db for sqlite)")
	cmd.Flags().StringVar(&f.address, "address", "file:///coursepack/index.html", "page address the learner state is keyed by")
	cmd.Flags().StringArrayVar(&f.pass, "pass", nil, "activity id to record as passed; repeatable")
	cmd.Flags().StringArrayVar(&f.fail, "fail", nil, "activity id to record as failed; repeatable")
	cmd.Flags().BoolVar(&f.reset, "reset", false, "clear progress before recording")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log host and runtime events")
	cmd.Flags().StringVar(&f.bridge, "bridge", "", "gateway enrollment URL; plays in hosted-bridge mode")
	cmd.Flags().StringVar(&f.token, "token", "", "bearer token for --bridge")
	cmd.Flags().DurationVar(&f.session, "session", 0, "keep the session open this long before terminating")
	cmd.Flags().DurationVar(&f.heartbeat, "heartbeat", config.FromEnv().Heartbeat, "heartbeat interval while --session runs (env HEARTBEAT_SECONDS)")
	return cmd
}

func runSimulate(cmd *cobra.Command, docPath string, f simulateFlags) error {
	doc, err := content.Load(docPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", docPath, err)
	}
	log := logger.Nop()
	if f.verbose {
		if log, err = logger.New("dev"); err != nil {
			return err
		}
		defer log.Sync()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	var rt *runtime.Runtime
	if f.bridge != "" {
		base := strings.TrimSuffix(f.bridge, "/")
		prior, err := fetchBridgeState(ctx, base, f.token)
		if err != nil {
			return err
		}
		em := host.NewHTTPEmitter(base+"/messages", 0, log)
		if f.token != "" {
			em.Header = http.Header{"Authorization": {"Bearer " + f.token}}
		}
		defer em.Wait()
		adapter := host.Discover(host.Environment{Emitter: em, PackageID: doc.ID, Log: log})
		rt = runtime.New(doc, adapter, runtime.WithLogger(log), runtime.WithHeartbeatInterval(f.heartbeat),
			runtime.WithInitialState(prior.SuspendData))
	} else {
		conn, err := db.Open(ctx, db.Driver(f.driver), f.dsn)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer conn.Close()
		adapter := host.Discover(host.Environment{
			Storage: storage.NewSQLKV(conn),
			Address: f.address,
			Log:     log,
		})
		rt = runtime.New(doc, adapter, runtime.WithLogger(log), runtime.WithHeartbeatInterval(f.heartbeat))
	}
	rt.Start()
	defer rt.Terminate()

	if f.reset {
		if err := rt.Reset(); err != nil {
			return err
		}
	}
	for _, id := range f.pass {
		if err := rt.RecordOutcome(id, true); err != nil {
			return fmt.Errorf("pass %s: %w", id, err)
		}
	}
	for _, id := range f.fail {
		if err := rt.RecordOutcome(id, false); err != nil {
			return fmt.Errorf("fail %s: %w", id, err)
		}
	}

	if f.session > 0 {
		sctx, stop := context.WithTimeout(cmd.Context(), f.session)
		err := rt.RunHeartbeat(sctx)
		stop()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "mode %s, progress %d%%, score %d, status %s\n", rt.Mode(), rt.Progress(), rt.FinalScore(), rt.LessonStatus())
	printSections(out, doc, rt)
	return nil
}

func fetchBridgeState(ctx context.Context, base, token string) (bridge.LearnerState, error) {
	var st bridge.LearnerState
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/state", nil)
	if err != nil {
		return st, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return st, fmt.Errorf("fetch learner state: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return st, fmt.Errorf("fetch learner state: %s", res.Status)
	}
	if err := json.NewDecoder(res.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode learner state: %w", err)
	}
	return st, nil
}
