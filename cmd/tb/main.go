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
	"gopkg.in/yaml.v3"

	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/derive"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/events"
	"taskboard/internal/migrate"
	"taskboard/internal/repo"
	"taskboard/internal/repo/memory"
	"taskboard/internal/repo/sqlite"
	"taskboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tb",
	Short: "Taskboard CLI",
	Long: `Taskboard tracks tasks, subtasks, and threaded comments.
Tasks carry participants and a due date; subtasks carry assignees and a
0-100 progress value, and the task's overall progress is the rounded mean
of its subtasks. Every change is written to an event log ('tb log tail').`,
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
	viper.SetEnvPrefix("TASKBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "actor identifier (defaults to taskboard.yml actor.id)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(subtaskCmd())
	rootCmd.AddCommand(commentCmd())
	rootCmd.AddCommand(participantCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default taskboard.yml to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(actor)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "local-user", "default actor id")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect workspace configuration"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the validated taskboard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskStatusCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var title, description, status, due string
	var participants []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				draft := engine.TaskDraft{
					Title:       title,
					Description: description,
					Status:      domain.Status(status),
					DueDate:     due,
					ActorID:     actorID(),
				}
				for _, p := range participants {
					email, name, _ := strings.Cut(p, "=")
					draft.Participants = append(draft.Participants, domain.Participant{Email: email, DisplayName: name})
				}
				t, err := e.CreateTask(ctx, draft)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "initial status (defaults to 'in progress')")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	cmd.Flags().StringArrayVar(&participants, "participant", []string{}, "participant email[=name] (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.GetTasks(ctx)
				if err != nil {
					return err
				}
				if status != "" {
					tasks = derive.FilterByStatus(tasks, domain.Status(status))
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				renderTaskTable(tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter ('all' for everything)")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, description, due string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var patch repo.TaskPatch
				if cmd.Flags().Changed("title") {
					patch.Title = &title
				}
				if cmd.Flags().Changed("description") {
					patch.Description = &description
				}
				if cmd.Flags().Changed("due") {
					patch.DueDate = &due
				}
				t, err := e.UpdateTask(ctx, args[0], patch, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	return cmd
}

func taskStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set task status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTaskStatus(ctx, args[0], domain.Status(args[1]), actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTask(ctx, args[0], actorID())
			})
		},
	}
	return cmd
}

func subtaskCmd() *cobra.Command {
	sub := &cobra.Command{Use: "subtask", Short: "Manage subtasks"}
	sub.AddCommand(subtaskAddCmd())
	sub.AddCommand(subtaskUpdateCmd())
	sub.AddCommand(subtaskProgressCmd())
	sub.AddCommand(subtaskDeleteCmd())
	return sub
}

func subtaskAddCmd() *cobra.Command {
	var title, description, due string
	var assignees []string
	var progress int
	cmd := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Add subtask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AddSubtask(ctx, args[0], engine.SubtaskDraft{
					Title:       title,
					Description: description,
					Assignees:   assignees,
					Progress:    progress,
					DueDate:     due,
					ActorID:     actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringArrayVar(&assignees, "assignee", []string{}, "assignee email (repeatable, must be a participant)")
	cmd.Flags().IntVar(&progress, "progress", 0, "initial progress (0-100)")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func subtaskUpdateCmd() *cobra.Command {
	var title, description, due string
	var assignees []string
	cmd := &cobra.Command{
		Use:   "update <task-id> <subtask-id>",
		Short: "Update subtask fields",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var patch repo.SubTaskPatch
				if cmd.Flags().Changed("title") {
					patch.Title = &title
				}
				if cmd.Flags().Changed("description") {
					patch.Description = &description
				}
				if cmd.Flags().Changed("assignee") {
					patch.Assignees = &assignees
				}
				if cmd.Flags().Changed("due") {
					patch.DueDate = &due
				}
				t, err := e.UpdateSubtask(ctx, args[0], args[1], patch, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringArrayVar(&assignees, "assignee", []string{}, "assignee email (repeatable)")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	return cmd
}

func subtaskProgressCmd() *cobra.Command {
	var progress int
	cmd := &cobra.Command{
		Use:   "progress <task-id> <subtask-id>",
		Short: "Set subtask progress (0-100, out-of-range is rejected)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateSubtaskProgress(ctx, args[0], args[1], progress, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().IntVar(&progress, "value", 0, "progress value")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func subtaskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <task-id> <subtask-id>",
		Short: "Delete subtask",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.DeleteSubtask(ctx, args[0], args[1], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func commentCmd() *cobra.Command {
	comment := &cobra.Command{Use: "comment", Short: "Manage comments"}
	comment.AddCommand(commentAddCmd())
	comment.AddCommand(commentEditCmd())
	comment.AddCommand(commentDeleteCmd())
	return comment
}

func commentAddCmd() *cobra.Command {
	var text, parent string
	cmd := &cobra.Command{
		Use:   "add <task-id> <subtask-id>",
		Short: "Add comment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AddComment(ctx, args[0], args[1], engine.CommentDraft{
					Text:            text,
					AuthorID:        actorID(),
					ParentCommentID: parent,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "comment text")
	cmd.Flags().StringVar(&parent, "reply-to", "", "parent comment id")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func commentEditCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "edit <task-id> <subtask-id> <comment-id>",
		Short: "Edit comment text",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.EditComment(ctx, args[0], args[1], args[2], text, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "new text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func commentDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <task-id> <subtask-id> <comment-id>",
		Short: "Delete comment (replies stay, orphaned)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.DeleteComment(ctx, args[0], args[1], args[2], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func participantCmd() *cobra.Command {
	p := &cobra.Command{Use: "participant", Short: "Manage participants"}
	p.AddCommand(participantAddCmd())
	p.AddCommand(participantRemoveCmd())
	return p
}

func participantAddCmd() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Add participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AddParticipant(ctx, args[0], domain.Participant{Email: email, DisplayName: name}, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "participant email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func participantRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <task-id> <email>",
		Short: "Remove participant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.RemoveParticipant(ctx, args[0], args[1], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func calendarCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Tasks grouped by due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				start, end, err := parseWindow(from, to)
				if err != nil {
					return err
				}
				tasks, err := e.GetTasks(ctx)
				if err != nil {
					return err
				}
				groups := derive.GroupByDueDate(tasks, start, end)
				if viper.GetBool("json") {
					return printJSON(groups)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Date", "ID", "Title", "Status", "Progress"})
				for _, g := range groups {
					for i, t := range g.Tasks {
						date := g.Date
						if i > 0 {
							date = ""
						}
						tw.AppendRow(table.Row{date, t.ID, t.Title, t.Status, fmt.Sprintf("%d%%", t.Progress)})
					}
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "window start (YYYY-MM-DD, defaults to today)")
	cmd.Flags().StringVar(&to, "to", "", "window end (YYYY-MM-DD, defaults to one week out)")
	return cmd
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search tasks by title or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.GetTasks(ctx)
				if err != nil {
					return err
				}
				var matched []domain.Task
				for _, t := range tasks {
					if derive.SearchMatch(t, args[0]) {
						matched = append(matched, t)
					}
				}
				if viper.GetBool("json") {
					return printJSON(matched)
				}
				renderTaskTable(matched)
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var taskID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Events.Latest(ctx, n, taskID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Task", "Entity", "Actor"})
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.TS, evt.Type, evt.TaskID, evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&taskID, "task", "", "task id filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var useMemory bool
	var latency, jitter time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default("local-user")
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			var e engine.Engine
			var cleanup func()
			if useMemory || cfg.Store.Backend == "memory" {
				if latency == 0 {
					latency = cfg.StoreLatency()
				}
				if jitter == 0 {
					jitter = cfg.StoreJitter()
				}
				store := memory.WithLatency(latency, jitter)
				e = engine.New(store, store, &events.MemoryLog{})
				cleanup = func() {}
			} else {
				if _, err := db.EnsureWorkspace(workspace); err != nil {
					return err
				}
				conn, err := db.Open(db.Config{Workspace: workspace})
				if err != nil {
					return err
				}
				if err := migrate.Migrate(conn); err != nil {
					conn.Close()
					return err
				}
				store := sqlite.New(conn)
				e = engine.New(store, store, &events.SQLLog{DB: conn})
				cleanup = func() { conn.Close() }
			}
			defer cleanup()

			secret := os.Getenv("TASKBOARD_JWT_SECRET")
			if secret == "" {
				secret = cfg.Server.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("TASKBOARD_JWT_SECRET (or server.jwt_secret in taskboard.yml) is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, TokenTTL: cfg.TokenTTL()},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Taskboard API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to taskboard.yml server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&useMemory, "memory", false, "use the in-memory store instead of sqlite")
	cmd.Flags().DurationVar(&latency, "latency", 0, "simulated delay per operation (memory store)")
	cmd.Flags().DurationVar(&jitter, "jitter", 0, "random extra delay per operation (memory store)")
	return cmd
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
	store := sqlite.New(conn)
	e := engine.New(store, store, &events.SQLLog{DB: conn})
	return fn(ctx, e)
}

func actorID() string {
	if id := viper.GetString("actor-id"); id != "" {
		return id
	}
	if cfg, err := config.LoadOptional(viper.GetString("workspace")); err == nil && cfg != nil && cfg.Actor.ID != "" {
		return cfg.Actor.ID
	}
	return "local-user"
}

// parseWindow mirrors the server's calendar window: whole days, with the
// final day extended to its last instant so due times inside it qualify.
func parseWindow(from, to string) (time.Time, time.Time, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 6)
	if from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
		}
		start = parsed
	}
	if to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--to must be YYYY-MM-DD: %w", err)
		}
		end = parsed
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to must not precede --from")
	}
	return start, end.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func renderTaskTable(tasks []domain.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Due", "Progress", "Subtasks"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.DueDate, fmt.Sprintf("%d%%", t.Progress), len(t.Subtasks)})
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
