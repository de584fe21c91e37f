package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pursuitline/internal/app"
	"pursuitline/internal/config"
	"pursuitline/internal/db"
	"pursuitline/internal/domain"
	"pursuitline/internal/engine"
	"pursuitline/internal/migrate"
	"pursuitline/internal/repo"
	"pursuitline/internal/scoring"
	"pursuitline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pl",
	Short: "Pursuitline CLI",
	Long: `Pursuitline tracks business development from first contact to signed deal.
Core concepts:
- Workspace: your .pursuitline directory with only the database; configs live in the DB and are imported explicitly.
- Project: a business-development effort that owns stakeholders, pursuits, and one go/no-go assessment.
- Stakeholders: the clients, consultants, and partners around a project.
- Assessment: the weighted scorecard (criteria from config, scores 1..3) that drives the go/no-go decision.
- Gate: pursuit creation is blocked until every criterion is scored and the weighted score clears the conditional threshold.
- Pursuits: concrete opportunities with an append-only comment log; statuses go open -> active -> won/lost/canceled.
- Conditions: follow-ups attached to a conditional_go decision; at least one is required to decide conditional_go.
- Event log: diary of changes, view with 'pl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		_ = godotenv.Load(filepath.Join(workspace, ".env"))
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
	viper.SetEnvPrefix("PURSUITLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides workspace default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(stakeholderCmd())
	rootCmd.AddCommand(pursuitCmd())
	rootCmd.AddCommand(assessmentCmd())
	rootCmd.AddCommand(conditionCmd())
	rootCmd.AddCommand(gateCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(approvalsCmd())
	rootCmd.AddCommand(milestoneCmd())
	rootCmd.AddCommand(documentCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(rbacCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectInitCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectConfigCmd())
	prj.AddCommand(projectUseCmd())
	return prj
}

func projectInitCmd() *cobra.Command {
	var id, name, desc string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a project with default config and RBAC",
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
			e := engine.New(conn, nil)
			p, err := e.InitProject(cmd.Context(), id, name, desc, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			return printJSONOrTable(p)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to id)")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func projectListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx, status)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (active, on_hold, archived)")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProject(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var name, status, description, clientID string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.ProjectUpdateOptions{ID: e.Config.Project.ID, ActorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("status") {
					opts.Status = &status
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &description
				}
				if cmd.Flags().Changed("client") {
					opts.ClientID = &clientID
				}
				p, err := e.UpdateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&status, "status", "", "status (active, on_hold, archived)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&clientID, "client", "", "client stakeholder id (empty clears)")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteProject(ctx, e.Config.Project.ID)
			})
		},
	}
	return cmd
}

func projectUseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use <id>",
		Short: "Set current project for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := strings.TrimSpace(args[0])
			if projectID == "" {
				return fmt.Errorf("project id is required")
			}
			workspace := viper.GetString("workspace")
			if err := setEnvValue(filepath.Join(workspace, ".env"), "PURSUITLINE_PROJECT", projectID); err != nil {
				return err
			}
			fmt.Printf("Set PURSUITLINE_PROJECT=%s in %s/.env\n", projectID, workspace)
			return nil
		},
	}
	return cmd
}

func projectConfigCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage project config",
		Long:  "Config is the rulebook (stored in DB): criteria catalog with weights, decision thresholds, and RBAC roles. Import from pursuitline.yml if desired.",
	}
	cfg.AddCommand(projectConfigShowCmd())
	cfg.AddCommand(projectConfigImportCmd())
	cfg.AddCommand(projectConfigValidateCmd())
	return cfg
}

func projectConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show project config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func projectConfigImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import project config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			cfg, err := config.FromYAML(data)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if warn := cfg.WeightWarning(); warn != "" {
				fmt.Fprintln(os.Stderr, "warning:", warn)
			}
			projectID := cfg.Project.ID
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if projectID == "" {
					projectID = e.Config.Project.ID
				}
				if err := e.ImportProjectConfig(ctx, projectID, cfg, viper.GetString("actor-id")); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func projectConfigValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stored config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Config.Validate()
			})
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func stakeholderCmd() *cobra.Command {
	st := &cobra.Command{
		Use:   "stakeholder",
		Short: "Manage stakeholders",
		Long:  "Stakeholders are the people and firms around a project: clients, consultants, and partners. They can be linked to projects with a role and referenced from pursuits.",
	}
	st.AddCommand(stakeholderCreateCmd())
	st.AddCommand(stakeholderListCmd())
	st.AddCommand(stakeholderShowCmd())
	st.AddCommand(stakeholderUpdateCmd())
	st.AddCommand(stakeholderLinkCmd())
	st.AddCommand(stakeholderUnlinkCmd())
	return st
}

func stakeholderCreateCmd() *cobra.Command {
	var opts engine.StakeholderCreateOptions
	var link bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a stakeholder",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if link && opts.ProjectID == "" {
					opts.ProjectID = e.Config.Project.ID
				}
				s, err := e.CreateStakeholder(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "stakeholder id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&opts.Kind, "kind", "client", "kind (client, consultant, partner)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	cmd.Flags().BoolVar(&link, "link", false, "link to the current project")
	cmd.Flags().StringVar(&opts.Role, "role", "", "link role (with --link)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func stakeholderListCmd() *cobra.Command {
	var f repo.StakeholderFilters
	var linked bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stakeholders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if linked && f.ProjectID == "" {
					f.ProjectID = e.Config.Project.ID
				}
				items, err := e.Repo.ListStakeholders(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Kind", "Email"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.Name, s.Kind, s.Email})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Kind, "kind", "", "kind filter")
	cmd.Flags().BoolVar(&linked, "linked", false, "only stakeholders linked to the current project")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func stakeholderShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stakeholder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				s, err := r.GetStakeholder(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func stakeholderUpdateCmd() *cobra.Command {
	var name, kind, email, phone, notes string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a stakeholder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.StakeholderUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if cmd.Flags().Changed("kind") {
				opts.Kind = &kind
			}
			if cmd.Flags().Changed("email") {
				opts.Email = &email
			}
			if cmd.Flags().Changed("phone") {
				opts.Phone = &phone
			}
			if cmd.Flags().Changed("notes") {
				opts.Notes = &notes
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.UpdateStakeholder(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&kind, "kind", "", "kind (client, consultant, partner)")
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&phone, "phone", "", "phone")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func stakeholderLinkCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "link <id>",
		Short: "Link a stakeholder to the current project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.LinkStakeholder(ctx, e.Config.Project.ID, args[0], role, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role on the project (sponsor, decision_maker, ...)")
	return cmd
}

func stakeholderUnlinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlink <id>",
		Short: "Unlink a stakeholder from the current project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.UnlinkStakeholder(ctx, e.Config.Project.ID, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func pursuitCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "pursuit",
		Short: "Manage pursuits",
		Long:  "Pursuits are concrete opportunities on a project. Creation runs through the assessment gate; statuses flow open -> active -> won/lost/canceled and every status change lands in the comment log.",
	}
	p.AddCommand(pursuitCreateCmd())
	p.AddCommand(pursuitListCmd())
	p.AddCommand(pursuitShowCmd())
	p.AddCommand(pursuitUpdateCmd())
	p.AddCommand(pursuitCommentCmd())
	p.AddCommand(pursuitCommentsCmd())
	return p
}

func pursuitCreateCmd() *cobra.Command {
	var opts engine.PursuitCreateOptions
	var value float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pursuit (subject to the assessment gate)",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if cmd.Flags().Changed("value") {
				opts.ValueEstimate = &value
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.ProjectID == "" {
					opts.ProjectID = e.Config.Project.ID
				}
				p, err := e.CreatePursuit(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "pursuit id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.StakeholderID, "stakeholder", "", "stakeholder id")
	cmd.Flags().StringVar(&opts.OwnerID, "owner", "", "owner actor id")
	cmd.Flags().Float64Var(&value, "value", 0, "estimated value")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (RFC3339)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func pursuitListCmd() *cobra.Command {
	var f repo.PursuitFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pursuits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.ProjectID == "" {
					f.ProjectID = e.Config.Project.ID
				}
				items, err := e.Repo.ListPursuits(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Owner", "Value"})
				for _, p := range items {
					owner := ""
					if p.OwnerID != nil {
						owner = *p.OwnerID
					}
					value := ""
					if p.ValueEstimate != nil {
						value = strconv.FormatFloat(*p.ValueEstimate, 'f', 2, 64)
					}
					tw.AppendRow(table.Row{p.ID, p.Title, p.Status, owner, value})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.OwnerID, "owner", "", "owner filter")
	cmd.Flags().StringVar(&f.StakeholderID, "stakeholder", "", "stakeholder filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func pursuitShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a pursuit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetPursuit(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func pursuitUpdateCmd() *cobra.Command {
	var title, description, status, stakeholder, owner, due string
	var value float64
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a pursuit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.PursuitUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			if cmd.Flags().Changed("stakeholder") {
				opts.StakeholderID = &stakeholder
			}
			if cmd.Flags().Changed("owner") {
				opts.OwnerID = &owner
			}
			if cmd.Flags().Changed("value") {
				opts.ValueEstimate = &value
			}
			if cmd.Flags().Changed("due") {
				opts.DueDate = &due
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.UpdatePursuit(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "new status (active, won, lost, canceled)")
	cmd.Flags().StringVar(&stakeholder, "stakeholder", "", "stakeholder id (empty clears)")
	cmd.Flags().StringVar(&owner, "owner", "", "owner actor id (empty clears)")
	cmd.Flags().Float64Var(&value, "value", 0, "estimated value")
	cmd.Flags().StringVar(&due, "due", "", "due date (empty clears)")
	return cmd
}

func pursuitCommentCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "comment <id>",
		Short: "Add a comment to a pursuit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AddComment(ctx, args[0], text, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "comment text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func pursuitCommentsCmd() *cobra.Command {
	var limit int
	var afterSeq int64
	cmd := &cobra.Command{
		Use:   "comments <id>",
		Short: "List comments on a pursuit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListComments(ctx, id, limit, afterSeq)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				for _, c := range items {
					marker := ""
					if c.System {
						marker = " [system]"
					}
					fmt.Printf("#%d %s %s%s: %s\n", c.Seq, c.CreatedAt, c.AuthorID, marker, c.Text)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	cmd.Flags().Int64Var(&afterSeq, "after", 0, "return comments after this sequence number")
	return cmd
}

func assessmentCmd() *cobra.Command {
	a := &cobra.Command{
		Use:   "assessment",
		Short: "Manage the go/no-go assessment",
		Long:  "The assessment scores the project against the weighted criteria catalog. It flows draft -> submitted -> under_review -> approved/conditional/rejected; revert drops it back to draft and clears the decision.",
	}
	a.AddCommand(assessmentShowCmd())
	a.AddCommand(assessmentScoreCmd())
	a.AddCommand(assessmentSubmitCmd())
	a.AddCommand(assessmentReviewCmd())
	a.AddCommand(assessmentDecideCmd())
	a.AddCommand(assessmentRevertCmd())
	a.AddCommand(assessmentClassifyCmd())
	return a
}

func assessmentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the project assessment with scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.GetAssessmentView(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(view)
				}
				fmt.Printf("Assessment %s: %s (decision: %s)\n", view.Assessment.ID, view.Assessment.Status, view.Assessment.Decision)
				fmt.Printf("Weighted score: %.2f (all scored: %v, suggested: %s)\n", view.Score, view.AllScored, view.Suggested)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Criterion", "Score", "Comment", "Scored By"})
				for _, s := range view.Scores {
					tw.AppendRow(table.Row{s.CriterionID, s.Score, s.Comment, s.ScoredBy})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func assessmentScoreCmd() *cobra.Command {
	var sets []string
	var comment string
	var revert bool
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Record criterion scores (creates the assessment if missing)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(sets) == 0 {
				return fmt.Errorf("at least one --set criterion=score required")
			}
			inputs := make([]engine.ScoreInput, 0, len(sets))
			for _, entry := range sets {
				key, raw, found := strings.Cut(entry, "=")
				if !found {
					return fmt.Errorf("invalid --set %q, expected criterion=score", entry)
				}
				score, err := strconv.Atoi(strings.TrimSpace(raw))
				if err != nil {
					return fmt.Errorf("invalid score in %q: %w", entry, err)
				}
				inputs = append(inputs, engine.ScoreInput{CriterionID: strings.TrimSpace(key), Score: score, Comment: comment})
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.SaveScores(ctx, e.Config.Project.ID, inputs, revert, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(view)
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", []string{}, "criterion=score (repeatable)")
	cmd.Flags().StringVar(&comment, "comment", "", "comment applied to each score")
	cmd.Flags().BoolVar(&revert, "revert", false, "force the assessment back to draft, clearing any decision")
	return cmd
}

func assessmentSubmitCmd() *cobra.Command {
	return assessmentActionCmd("submit", "Submit the assessment for review", engine.Engine.SubmitAssessment)
}

func assessmentReviewCmd() *cobra.Command {
	return assessmentActionCmd("review", "Move the assessment under review", engine.Engine.ReviewAssessment)
}

func assessmentRevertCmd() *cobra.Command {
	return assessmentActionCmd("revert", "Revert the assessment to draft (clears the decision)", engine.Engine.RevertAssessment)
}

func assessmentActionCmd(use, short string, run func(engine.Engine, context.Context, string, string) (engine.AssessmentView, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := run(e, ctx, e.Config.Project.ID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(view)
			})
		},
	}
}

func assessmentDecideCmd() *cobra.Command {
	var decision string
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Record the go/no-go decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.DecideAssessment(ctx, e.Config.Project.ID, decision, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(view)
			})
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "", "decision (go, conditional_go, no_go)")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func assessmentClassifyCmd() *cobra.Command {
	var score, goT, conditionalT float64
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a weighted score against the thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("go") != cmd.Flags().Changed("conditional") {
				return fmt.Errorf("--go and --conditional must be provided together")
			}
			var override *scoring.Thresholds
			if cmd.Flags().Changed("go") {
				override = &scoring.Thresholds{Go: goT, Conditional: conditionalT}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				decision, thresholds, err := e.ClassifyPreview(ctx, e.Config.Project.ID, score, override)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"score":      score,
					"decision":   decision,
					"thresholds": thresholds,
				})
			})
		},
	}
	cmd.Flags().Float64Var(&score, "score", 0, "weighted score to classify")
	cmd.Flags().Float64Var(&goT, "go", 0, "go threshold override")
	cmd.Flags().Float64Var(&conditionalT, "conditional", 0, "conditional threshold override")
	_ = cmd.MarkFlagRequired("score")
	return cmd
}

func conditionCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "condition",
		Short: "Manage assessment conditions",
		Long:  "Conditions are the follow-ups behind a conditional_go decision. At least one must exist before conditional_go can be recorded.",
	}
	c.AddCommand(conditionAddCmd())
	c.AddCommand(conditionListCmd())
	c.AddCommand(conditionUpdateCmd())
	c.AddCommand(conditionDeleteCmd())
	return c
}

func conditionAddCmd() *cobra.Command {
	var opts engine.ConditionOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Attach a condition to the assessment",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ProjectID = e.Config.Project.ID
				c, err := e.AddCondition(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Condition, "text", "", "condition text")
	cmd.Flags().StringVar(&opts.ResponsibleID, "responsible", "", "responsible actor id")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (RFC3339)")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func conditionListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assessment conditions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Repo.GetAssessmentByProject(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				items, err := e.Repo.ListConditions(ctx, a.ID, status)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (pending, met, not_met)")
	return cmd
}

func conditionUpdateCmd() *cobra.Command {
	var opts engine.ConditionOptions
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a condition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ProjectID = e.Config.Project.ID
				c, err := e.UpdateCondition(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Condition, "text", "", "condition text")
	cmd.Flags().StringVar(&opts.ResponsibleID, "responsible", "", "responsible actor id")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (RFC3339)")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (pending, met, not_met)")
	return cmd
}

func conditionDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a condition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteCondition(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func gateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Evaluate the pursuit-creation gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				gate, err := e.EvaluateGate(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(gate)
				}
				if gate.Allowed {
					fmt.Printf("gate OPEN (weighted score %.2f)\n", gate.Score)
				} else {
					fmt.Printf("gate BLOCKED: %s (weighted score %.2f)\n", gate.Reason, gate.Score)
				}
				return nil
			})
		},
	}
	return cmd
}

func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the project dashboard",
		Long:  "See the scoreboard for your project: pursuit counts, pipeline value, stakeholder mix, and assessment state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.GetDashboard(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				fmt.Printf("Project: %s\n", d.ProjectID)
				fmt.Printf("Pipeline value: %.2f\n", d.PipelineValue)
				fmt.Println("Pursuits:")
				for status, c := range d.PursuitsByStatus {
					fmt.Printf("  %s: %d\n", status, c)
				}
				fmt.Println("Stakeholders:")
				for kind, c := range d.StakeholdersByKind {
					fmt.Printf("  %s: %d\n", kind, c)
				}
				if d.Assessment != nil {
					fmt.Printf("Assessment: %s (decision %s, score %.2f, %d/%d scored)\n",
						d.Assessment.Status, d.Assessment.Decision, d.Assessment.Score,
						d.Assessment.ScoredCount, d.Assessment.CriteriaCount)
				} else {
					fmt.Println("Assessment: none")
				}
				if d.Gate.Allowed {
					fmt.Println("Gate: open")
				} else {
					fmt.Printf("Gate: blocked (%s)\n", d.Gate.Reason)
				}
				return nil
			})
		},
	}
	return cmd
}

func approvalsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "List assessments waiting for a decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListPendingApprovals(ctx, limit)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func milestoneCmd() *cobra.Command {
	m := &cobra.Command{Use: "milestone", Short: "Manage milestones"}
	m.AddCommand(milestoneCreateCmd())
	m.AddCommand(milestoneListCmd())
	m.AddCommand(milestoneStatusCmd())
	return m
}

func milestoneCreateCmd() *cobra.Command {
	var title, due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a milestone",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.CreateMilestone(ctx, e.Config.Project.ID, title, due, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func milestoneListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List milestones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListMilestones(ctx, e.Config.Project.ID, status)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (pending, done, missed)")
	return cmd
}

func milestoneStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Update milestone status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.SetMilestoneStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (pending, done, missed)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func documentCmd() *cobra.Command {
	d := &cobra.Command{Use: "document", Short: "Manage document records"}
	d.AddCommand(documentAddCmd())
	d.AddCommand(documentListCmd())
	return d
}

func documentAddCmd() *cobra.Command {
	var doc domain.Document
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an uploaded document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				doc.ProjectID = e.Config.Project.ID
				res, err := e.RegisterDocument(ctx, doc, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&doc.Name, "name", "", "document name")
	cmd.Flags().StringVar(&doc.Path, "path", "", "storage path")
	cmd.Flags().StringVar(&doc.ContentType, "content-type", "", "content type")
	cmd.Flags().Int64Var(&doc.SizeBytes, "size", 0, "size in bytes")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func documentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List document records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListDocuments(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func searchCmd() *cobra.Command {
	var kinds []string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search projects, stakeholders, pursuits, and comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				hits, err := e.Repo.Search(ctx, e.Config.Project.ID, term, kinds, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(hits)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Kind", "ID", "Title", "Snippet"})
				for _, h := range hits {
					tw.AppendRow(table.Row{h.Kind, h.ID, h.Title, h.Snippet})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&kinds, "kind", []string{}, "entity kind filter (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 25, "max rows")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: assessments, decisions, pursuits, role grants, and more.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, e.Config.Project.ID, evtType, entityKind, entityID)
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

func rbacCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rbac",
		Short: "RBAC management",
	}
	cmd.AddCommand(rbacWhoamiCmd())
	cmd.AddCommand(rbacGrantCmd())
	cmd.AddCommand(rbacRevokeCmd())
	return cmd
}

func rbacWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show current actor roles and permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				profile, err := e.Repo.ActorProfile(ctx, e.Config.Project.ID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(profile)
			})
		},
	}
	return cmd
}

func rbacGrantCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "grant-role",
		Short: "Grant role to actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.GrantRole(ctx, e.Config.Project.ID, target, role, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&target, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func rbacRevokeCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "revoke-role",
		Short: "Revoke role from actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RevokeRole(ctx, e.Config.Project.ID, target, role, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&target, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api-key",
		Short: "Manage API keys for the HTTP server",
	}
	cmd.AddCommand(apiKeyCreateCmd())
	cmd.AddCommand(apiKeyListCmd())
	cmd.AddCommand(apiKeyDeleteCmd())
	return cmd
}

func apiKeyCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (raw key is printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			raw := uuid.New().String() + uuid.New().String()
			key := domain.APIKey{
				ID:        uuid.New().String(),
				ActorID:   actor,
				Name:      name,
				KeyHash:   repo.HashAPIKey(raw),
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "actor_id": key.ActorID, "name": key.Name, "key": raw})
				}
				fmt.Printf("API key %s created for %s\n", key.ID, key.ActorID)
				fmt.Printf("Key (save it now, it is not stored): %s\n", raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor the key authenticates as (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key name")
	return cmd
}

func apiKeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor filter")
	return cmd
}

func apiKeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var metrics, allowLegacy bool
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
			e := engine.New(conn, nil)
			_, cfg, err := app.ResolveProjectAndConfig(cmd.Context(), e, viper.GetString("project"), viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			e.Config = cfg
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("PURSUITLINE_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacy,
			}
			if authCfg.JWTSecret == "" && !allowLegacy {
				return fmt.Errorf("PURSUITLINE_JWT_SECRET is required for bearer auth (or pass --allow-legacy-actor-header)")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg, Metrics: metrics})
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
			fmt.Printf("Serving Pursuitline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "expose Prometheus metrics at /metrics")
	cmd.Flags().BoolVar(&allowLegacy, "allow-legacy-actor-header", false, "accept X-Actor-Id without a token (dev only)")
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
	e := engine.New(conn, nil)
	_, cfg, err := app.ResolveProjectAndConfig(ctx, e, viper.GetString("project"), viper.GetString("actor-id"))
	if err != nil {
		return err
	}
	e.Config = cfg
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

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
