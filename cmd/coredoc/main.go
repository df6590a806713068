// Command coredoc is the operator-facing CLI over a coredoc engine: insert,
// update, delete, find, find-by-id, explain, marker-status,
// request-promotion and serve subcommands, plus an interactive REPL.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kartikbazzad/coredoc"
	"github.com/kartikbazzad/coredoc/config"
	"github.com/kartikbazzad/coredoc/internal/admission"
	"github.com/kartikbazzad/coredoc/logging"
	"github.com/kartikbazzad/coredoc/metrics"
	"github.com/kartikbazzad/coredoc/planner"
	"github.com/kartikbazzad/coredoc/replication"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

var (
	dataDir   string
	schemaDir string
	nodeID    string
	bootstrap bool
)

func main() {
	root := &cobra.Command{
		Use:   "coredoc",
		Short: "Operate a coredoc node",
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "data directory (WAL, indexes, marker)")
	root.PersistentFlags().StringVar(&schemaDir, "schema-dir", "./schema", "schema descriptor directory")
	root.PersistentFlags().StringVar(&nodeID, "node-id", "", "this node's id")
	root.PersistentFlags().BoolVar(&bootstrap, "bootstrap", false, "initialize a new data directory as the first authority")

	root.AddCommand(
		insertCmd(), updateCmd(), deleteCmd(), findCmd(), findByIDCmd(),
		explainCmd(), markerStatusCmd(), requestPromotionCmd(), replCmd(),
		serveCmd(),
	)

	if err := root.Execute(); err != nil {
		if code := coredoc.ExitCode(err); code == 3 {
			logging.Error("fatal corruption, exiting", "exit_code", code, "err", err.Error())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(coredoc.ExitCode(err))
	}
}

func openEngine() (*coredoc.Engine, error) {
	logging.Init(logging.Config{Level: "INFO", Format: "text"})
	cfg := config.Default()
	_ = config.Load(&cfg) // environment overrides, if set; absence is not an error

	opts := coredoc.Options{
		DataDir:   dataDir,
		SchemaDir: schemaDir,
		NodeID:    nodeID,
		Bootstrap: bootstrap,
		Admission: admission.Config{
			MaxWritesPerSecond:   cfg.MaxWritesPerSecond,
			MaxConcurrentQueries: cfg.MaxConcurrentQueries,
			MaxResultSetDocs:     cfg.MaxResultSetDocs,
			QueryTimeout:         time.Duration(cfg.QueryTimeoutMS) * time.Millisecond,
		},
	}
	if opts.NodeID == "" && cfg.NodeID != "" {
		opts.NodeID = cfg.NodeID
	}
	return coredoc.Open(opts)
}

func printDoc(doc map[string]any) {
	data, _ := json.MarshalIndent(doc, "", "  ")
	fmt.Println(string(data))
}

func parseBody(raw string) (map[string]any, error) {
	var body map[string]any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("invalid document JSON: %w", err)
	}
	return body, nil
}

// parseFilter accepts a flat JSON object of field:value equality pairs and
// ANDs them together. It does not attempt to expose the full filter AST
// (range/in/exists/or/not) from the command line — that belongs to a
// richer client, not a one-shot operator command.
func parseFilter(raw string) (planner.Node, error) {
	if raw == "" {
		return nil, nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("invalid filter JSON: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	leaves := make([]planner.Node, 0, len(fields))
	for k, v := range fields {
		leaves = append(leaves, &planner.Leaf{FieldPath: k, Op: planner.OpEq, Literal: v})
	}
	if len(leaves) == 1 {
		return leaves[0], nil
	}
	return &planner.And{Children: leaves}, nil
}

func parseLimit(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid limit %q: %w", raw, err)
	}
	return &n, nil
}

func insertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert <collection> <document-json>",
		Short: "Insert a new document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			body, err := parseBody(args[1])
			if err != nil {
				return err
			}
			lsn, err := engine.Insert(args[0], body)
			if err != nil {
				return err
			}
			fmt.Printf("inserted at lsn=%d\n", lsn)
			return nil
		},
	}
	return cmd
}

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <collection> <id> <document-json>",
		Short: "Replace an existing document's body",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			body, err := parseBody(args[2])
			if err != nil {
				return err
			}
			lsn, err := engine.Update(args[0], args[1], body)
			if err != nil {
				return err
			}
			fmt.Printf("updated at lsn=%d\n", lsn)
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Delete an existing document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			lsn, err := engine.Delete(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("deleted at lsn=%d\n", lsn)
			return nil
		},
	}
}

func findCmd() *cobra.Command {
	var filterJSON, limitStr string
	cmd := &cobra.Command{
		Use:   "find <collection>",
		Short: "Find documents matching a flat equality filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			filter, err := parseFilter(filterJSON)
			if err != nil {
				return err
			}
			limit, err := parseLimit(limitStr)
			if err != nil {
				return err
			}
			docs, err := engine.Find(args[0], filter, limit, coredoc.FindOptions{})
			if err != nil {
				return err
			}
			for _, d := range docs {
				printDoc(d)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filterJSON, "filter", "", `equality filter, e.g. {"age":30}`)
	cmd.Flags().StringVar(&limitStr, "limit", "", "maximum number of results")
	return cmd
}

func findByIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find-by-id <collection> <id>",
		Short: "Find one document by its _id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			doc, ok, err := engine.FindByID(args[0], args[1], coredoc.FindOptions{})
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("not found")
				return nil
			}
			printDoc(doc)
			return nil
		},
	}
}

func explainCmd() *cobra.Command {
	var filterJSON, limitStr string
	cmd := &cobra.Command{
		Use:   "explain <collection>",
		Short: "Show the plan a filter would select, without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			filter, err := parseFilter(filterJSON)
			if err != nil {
				return err
			}
			limit, err := parseLimit(limitStr)
			if err != nil {
				return err
			}
			explanation, err := engine.Explain(args[0], filter, limit)
			if err != nil {
				return err
			}
			fmt.Println(explanation)
			return nil
		},
	}
	cmd.Flags().StringVar(&filterJSON, "filter", "", `equality filter, e.g. {"age":30}`)
	cmd.Flags().StringVar(&limitStr, "limit", "", "maximum number of results")
	return cmd
}

func markerStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "marker-status",
		Short: "Show this node's replication role, generation, and durable lsn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			status := engine.MarkerStatus()
			fmt.Printf("role=%s generation=%d authority=%s durable_lsn=%d\n",
				status.Role, status.Generation, status.AuthorityNodeID, status.DurableLSN)
			return nil
		},
	}
}

func requestPromotionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request-promotion <authority-admin-addr> <target-admin-addr>",
		Short: "Drive the five-state promotion protocol against two remote nodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			final, err := engine.RequestPromotion(args[0], args[1], func(s replication.PromotionState) {
				fmt.Printf("  -> %s\n", s)
			})
			if err != nil {
				return fmt.Errorf("promotion ended in %s: %w", final, err)
			}
			fmt.Printf("promotion %s\n", final)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var listenAddr, adminAddr, metricsAddr, authorityAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run this node as a long-lived process: admin RPCs, metrics, and replication",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			cfg := config.Default()
			_ = config.Load(&cfg)
			if listenAddr == "" {
				listenAddr = cfg.ListenAddr
			}
			if adminAddr == "" {
				adminAddr = cfg.AdminAddr
			}
			if metricsAddr == "" {
				metricsAddr = cfg.MetricsAddr
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runServer(ctx, engine, listenAddr, adminAddr, metricsAddr, authorityAddr)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen-addr", "", "address this node ships/accepts WAL records on")
	cmd.Flags().StringVar(&adminAddr, "admin-addr", "", "address this node answers promotion RPCs on")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on")
	cmd.Flags().StringVar(&authorityAddr, "authority-listen-addr", "", "a follower's authority's --listen-addr to dial; required when this node booted as a follower")
	return cmd
}

// runServer runs every long-lived loop this node needs until ctx is
// canceled: the admin RPC listener (both roles), the metrics server, and
// whichever of the shipper/follower loops matches this node's current role.
// Role is fixed at process start — a promotion that changes it requires a
// restart to pick up the other loop, matching the "promotion changes the
// marker; the operator restarts the process" split of responsibility the
// CLI's request-promotion command leaves to whoever drives it.
func runServer(ctx context.Context, engine *coredoc.Engine, listenAddr, adminAddr, metricsAddr, authorityAddr string) error {
	admin := replication.NewAdminServer(engine.Node(), engine.WAL(), engine.Drain)
	adminListener, err := net.Listen("tcp", adminAddr)
	if err != nil {
		return fmt.Errorf("listen on admin addr %s: %w", adminAddr, err)
	}
	go acceptLoop(ctx, adminListener, func(conn net.Conn) { admin.Serve(conn) })
	logging.Info("admin rpc listener started", "addr", adminAddr)

	metricsServer := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("metrics server stopped", "error", err)
		}
	}()
	logging.Info("metrics listener started", "addr", metricsAddr)

	if engine.Node().IsAuthority() {
		if err := runAuthorityLoops(ctx, engine, listenAddr); err != nil {
			return err
		}
	} else {
		if authorityAddr == "" {
			return fmt.Errorf("node booted as follower: --authority-listen-addr is required")
		}
		runFollowerLoop(ctx, engine, authorityAddr)
	}

	<-ctx.Done()
	adminListener.Close()
	metricsServer.Close()
	return nil
}

func acceptLoop(ctx context.Context, l net.Listener, handle func(net.Conn)) {
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		go handle(conn)
	}
}

func runAuthorityLoops(ctx context.Context, engine *coredoc.Engine, listenAddr string) error {
	pool := replication.NewFollowerPool(30 * time.Second)
	pool.Start()
	go func() {
		<-ctx.Done()
		pool.Close()
	}()

	shipper, err := replication.NewShipper(engine.WAL(), engine.Node(), pool, engine.Audit(), 16)
	if err != nil {
		return fmt.Errorf("create shipper: %w", err)
	}
	go func() {
		<-ctx.Done()
		shipper.Close()
	}()

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}
	go acceptLoop(ctx, listener, func(conn net.Conn) {
		if err := shipper.Accept(ctx, conn); err != nil {
			conn.Close()
		}
	})
	logging.Info("replication shipper listening", "addr", listenAddr)
	return nil
}

// runFollowerLoop dials the authority and applies shipped records until ctx
// is canceled, reconnecting on every disconnect or fatal apply error. A
// short backoff keeps a persistently unreachable authority from spinning a
// reconnect loop at full speed.
func runFollowerLoop(ctx context.Context, engine *coredoc.Engine, authorityAddr string) {
	follower := replication.NewFollower(engine.Node(), engine.WAL(), engine.Store(), engine.Audit())
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			conn, err := net.DialTimeout("tcp", authorityAddr, 5*time.Second)
			if err != nil {
				logging.Error("follower dial failed", "addr", authorityAddr, "error", err)
				time.Sleep(2 * time.Second)
				continue
			}
			if err := follower.Run(ctx, conn); err != nil && ctx.Err() == nil {
				logging.Error("follower run ended", "error", err)
				time.Sleep(2 * time.Second)
			}
		}
	}()
	logging.Info("follower replication loop started", "authority_addr", authorityAddr)
}

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive shell over insert/update/delete/find/explain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()
			return runREPL(engine)
		},
	}
}

func runREPL(engine *coredoc.Engine) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("coredoc repl — insert/update/delete/find/find-by-id/explain/marker-status, or quit")
	for {
		input, err := line.Prompt("coredoc> ")
		if err != nil {
			return nil // EOF or Ctrl-D ends the session cleanly
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == "quit" || input == "exit" {
			return nil
		}
		if err := replDispatch(engine, input); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func replDispatch(engine *coredoc.Engine, input string) error {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "marker-status":
		status := engine.MarkerStatus()
		fmt.Printf("role=%s generation=%d authority=%s durable_lsn=%d\n",
			status.Role, status.Generation, status.AuthorityNodeID, status.DurableLSN)
		return nil

	case "insert":
		if len(fields) < 3 {
			return fmt.Errorf("usage: insert <collection> <document-json>")
		}
		body, err := parseBody(strings.Join(fields[2:], " "))
		if err != nil {
			return err
		}
		lsn, err := engine.Insert(fields[1], body)
		if err != nil {
			return err
		}
		fmt.Printf("inserted at lsn=%d\n", lsn)
		return nil

	case "update":
		if len(fields) < 4 {
			return fmt.Errorf("usage: update <collection> <id> <document-json>")
		}
		body, err := parseBody(strings.Join(fields[3:], " "))
		if err != nil {
			return err
		}
		lsn, err := engine.Update(fields[1], fields[2], body)
		if err != nil {
			return err
		}
		fmt.Printf("updated at lsn=%d\n", lsn)
		return nil

	case "delete":
		if len(fields) != 3 {
			return fmt.Errorf("usage: delete <collection> <id>")
		}
		lsn, err := engine.Delete(fields[1], fields[2])
		if err != nil {
			return err
		}
		fmt.Printf("deleted at lsn=%d\n", lsn)
		return nil

	case "find-by-id":
		if len(fields) != 3 {
			return fmt.Errorf("usage: find-by-id <collection> <id>")
		}
		doc, ok, err := engine.FindByID(fields[1], fields[2], coredoc.FindOptions{})
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("not found")
			return nil
		}
		printDoc(doc)
		return nil

	case "find":
		if len(fields) < 2 {
			return fmt.Errorf("usage: find <collection> [filter-json]")
		}
		var filterJSON string
		if len(fields) > 2 {
			filterJSON = strings.Join(fields[2:], " ")
		}
		filter, err := parseFilter(filterJSON)
		if err != nil {
			return err
		}
		docs, err := engine.Find(fields[1], filter, nil, coredoc.FindOptions{})
		if err != nil {
			return err
		}
		for _, d := range docs {
			printDoc(d)
		}
		return nil

	case "explain":
		if len(fields) < 2 {
			return fmt.Errorf("usage: explain <collection> [filter-json]")
		}
		var filterJSON string
		if len(fields) > 2 {
			filterJSON = strings.Join(fields[2:], " ")
		}
		filter, err := parseFilter(filterJSON)
		if err != nil {
			return err
		}
		explanation, err := engine.Explain(fields[1], filter, nil)
		if err != nil {
			return err
		}
		fmt.Println(explanation)
		return nil

	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}
