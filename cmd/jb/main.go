package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jurybox/internal/config"
	"jurybox/internal/db"
	"jurybox/internal/domain"
	"jurybox/internal/engine"
	"jurybox/internal/migrate"
	"jurybox/internal/repo"
	"jurybox/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "jb",
	Short: "Jurybox CLI",
	Long: `Jurybox routes paid micro-tasks to human workers and settles them by consensus.
Agents fund tasks; importance decides how many independent workers answer;
matching answers win, reputations move, and accepted workers get paid.
The workspace is a .jurybox directory holding the SQLite database, with
optional settings in jurybox.yml next to it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("JURYBOX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(leaderboardCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace with default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			data, err := config.Default().ToYAML()
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			fmt.Printf("initialized workspace: %s, database: %s\n", path, db.Path(workspace))
			return nil
		},
	}
	return cmd
}

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "agent", Short: "Manage agents"}
	cmd.AddCommand(agentRegisterCmd())
	cmd.AddCommand(agentDepositCmd())
	cmd.AddCommand(agentBalanceCmd())
	cmd.AddCommand(agentKeysCmd())
	cmd.AddCommand(agentRevokeKeyCmd())
	return cmd
}

func agentKeysCmd() *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List an agent's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, agentID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&agentID, "agent-id", "", "agent id")
	_ = cmd.MarkFlagRequired("agent-id")
	return cmd
}

func agentRevokeKeyCmd() *cobra.Command {
	var keyID string
	cmd := &cobra.Command{
		Use:   "revoke-key",
		Short: "Revoke an API key by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.DeleteAPIKey(ctx, keyID); err != nil {
					return err
				}
				fmt.Printf("revoked key %s\n", keyID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&keyID, "key-id", "", "api key id")
	_ = cmd.MarkFlagRequired("key-id")
	return cmd
}

func agentRegisterCmd() *cobra.Command {
	var name, webhookURL string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an agent and print its API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, key, err := e.RegisterAgent(ctx, name, webhookURL)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"agent": a, "api_key": key})
				}
				fmt.Printf("agent %s registered\n", a.ID)
				fmt.Printf("api key (shown once): %s\n", key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "agent name")
	cmd.Flags().StringVar(&webhookURL, "webhook-url", "", "webhook endpoint for task events")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func agentDepositCmd() *cobra.Command {
	var agentID string
	var amount float64
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Credit an agent's balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Deposit(ctx, agentID, amount)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&agentID, "agent-id", "", "agent id")
	cmd.Flags().Float64Var(&amount, "amount", 0, "amount to deposit")
	_ = cmd.MarkFlagRequired("agent-id")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func agentBalanceCmd() *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show an agent's balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				a, err := r.GetAgent(ctx, agentID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(a)
				}
				fmt.Printf("%s: %.2f\n", a.Name, a.Balance)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&agentID, "agent-id", "", "agent id")
	_ = cmd.MarkFlagRequired("agent-id")
	return cmd
}

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "worker", Short: "Manage workers"}
	cmd.AddCommand(workerRegisterCmd())
	cmd.AddCommand(workerShowCmd())
	cmd.AddCommand(workerReputationCmd())
	cmd.AddCommand(workerCashOutCmd())
	return cmd
}

func workerRegisterCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.RegisterWorker(ctx, username)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "unique username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func workerShowCmd() *cobra.Command {
	var workerID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a worker's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				w, err := r.GetWorker(ctx, workerID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(w)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Username", "Tier", "Trust", "Trophies", "Completed", "Accuracy", "Balance"})
				tw.AppendRow(table.Row{w.Username, w.TrustTier, w.TrustScore, w.Trophies, w.TotalCompleted, w.AccuracyRate, w.AvailableBalance})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&workerID, "worker-id", "", "worker id")
	_ = cmd.MarkFlagRequired("worker-id")
	return cmd
}

func workerReputationCmd() *cobra.Command {
	var workerID string
	var n int
	cmd := &cobra.Command{
		Use:   "reputation",
		Short: "Show a worker's reputation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.ListReputationEvents(ctx, workerID, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().StringVar(&workerID, "worker-id", "", "worker id")
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	_ = cmd.MarkFlagRequired("worker-id")
	return cmd
}

func workerCashOutCmd() *cobra.Command {
	var workerID string
	cmd := &cobra.Command{
		Use:   "cashout",
		Short: "Withdraw a worker's earned balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				amount, err := e.CashOut(ctx, workerID)
				if err != nil {
					return err
				}
				fmt.Printf("cashed out %.2f\n", amount)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&workerID, "worker-id", "", "worker id")
	_ = cmd.MarkFlagRequired("worker-id")
	return cmd
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}
	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskShowCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskAvailableCmd())
	cmd.AddCommand(taskClaimCmd())
	cmd.AddCommand(taskSubmitCmd())
	cmd.AddCommand(taskCancelCmd())
	cmd.AddCommand(taskEvaluateCmd())
	cmd.AddCommand(taskReapCmd())
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var agentID, payload string
	var importance int
	var maxBudget float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
					AgentID:    agentID,
					Payload:    json.RawMessage(payload),
					Importance: importance,
					MaxBudget:  maxBudget,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&agentID, "agent-id", "", "posting agent id")
	cmd.Flags().StringVar(&payload, "payload", "", "task payload (JSON)")
	cmd.Flags().IntVar(&importance, "importance", 0, "importance 1-100")
	cmd.Flags().Float64Var(&maxBudget, "max-budget", 0, "maximum budget")
	_ = cmd.MarkFlagRequired("agent-id")
	_ = cmd.MarkFlagRequired("payload")
	_ = cmd.MarkFlagRequired("importance")
	return cmd
}

func taskShowCmd() *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a task with its assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				t, err := r.GetTask(ctx, taskID)
				if err != nil {
					return err
				}
				assignments, err := r.ListAssignments(ctx, taskID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"task": t, "assignments": assignments})
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "task id")
	_ = cmd.MarkFlagRequired("task-id")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				tasks, err := r.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				renderTaskTable(tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.AgentID, "agent-id", "", "agent filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func taskAvailableCmd() *cobra.Command {
	var workerID string
	var limit int
	cmd := &cobra.Command{
		Use:   "available",
		Short: "List tasks a worker can claim",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.AvailableTasks(ctx, workerID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				renderTaskTable(tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&workerID, "worker-id", "", "worker id")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	_ = cmd.MarkFlagRequired("worker-id")
	return cmd
}

func taskClaimCmd() *cobra.Command {
	var taskID, workerID string
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim a worker slot on a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Claim(ctx, taskID, workerID)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "task id")
	cmd.Flags().StringVar(&workerID, "worker-id", "", "worker id")
	_ = cmd.MarkFlagRequired("task-id")
	_ = cmd.MarkFlagRequired("worker-id")
	return cmd
}

func taskSubmitCmd() *cobra.Command {
	var taskID, workerID, response string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a response for a claimed task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Submit(ctx, taskID, workerID, json.RawMessage(response))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "task id")
	cmd.Flags().StringVar(&workerID, "worker-id", "", "worker id")
	cmd.Flags().StringVar(&response, "response", "", "response payload (JSON)")
	_ = cmd.MarkFlagRequired("task-id")
	_ = cmd.MarkFlagRequired("worker-id")
	_ = cmd.MarkFlagRequired("response")
	return cmd
}

func taskCancelCmd() *cobra.Command {
	var taskID, agentID string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel an unstarted task and refund the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CancelTask(ctx, taskID, agentID)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "task id")
	cmd.Flags().StringVar(&agentID, "agent-id", "", "posting agent id")
	_ = cmd.MarkFlagRequired("task-id")
	_ = cmd.MarkFlagRequired("agent-id")
	return cmd
}

func taskEvaluateCmd() *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Adjudicate a task's submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Evaluate(ctx, taskID, "cli")
				if err != nil && !errors.Is(err, engine.ErrAlreadyAdjudicated) {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "task id")
	_ = cmd.MarkFlagRequired("task-id")
	return cmd
}

func taskReapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Expire tasks stuck past the pending deadline and refund agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				expired, err := e.ExpireStale(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(expired)
				}
				fmt.Printf("expired %d task(s)\n", len(expired))
				for _, t := range expired {
					fmt.Printf("  %s (refunded %.2f)\n", t.ID, t.EstPrice)
				}
				return nil
			})
		},
	}
	return cmd
}

func leaderboardCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Workers ranked by trophies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				workers, err := r.Leaderboard(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(workers)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Username", "Tier", "Trophies", "Trust", "Completed"})
				for i, w := range workers {
					tw.AppendRow(table.Row{i + 1, w.Username, w.TrustTier, w.Trophies, w.TrustScore, w.TotalCompleted})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of workers")
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Event log"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var reapInterval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("JURYBOX_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("JURYBOX_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}

			go runReaper(cmd.Context(), e, reapInterval)

			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Jurybox API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().DurationVar(&reapInterval, "reap-interval", time.Hour, "how often to expire stuck tasks")
	return cmd
}

func runReaper(ctx context.Context, e engine.Engine, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := e.ExpireStale(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "reaper: %v\n", err)
				continue
			}
			if len(expired) > 0 {
				fmt.Printf("reaper: expired %d task(s)\n", len(expired))
			}
		}
	}
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func renderTaskTable(tasks []domain.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Status", "Importance", "Workers", "Price/Worker", "Min Trophies"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.Status, t.Importance, t.RequiredWorkers, t.PricePerWorker, t.MinTrophies})
	}
	tw.Render()
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
