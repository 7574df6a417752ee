package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"hindsight/internal/app"
	"hindsight/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Record", "Sync").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "hindsight",
	Short: "Personal activity recorder and sync client",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		primaryURL, _ := cmd.Flags().GetString("primary-url")
		fallbackURL, _ := cmd.Flags().GetString("fallback-url")

		deviceID := uuid.New().String()
		cfg := config.NewConfig(deviceID, defaults["base_dir"])
		cfg.Server.PrimaryURL = primaryURL
		cfg.Server.FallbackURL = fallbackURL

		fmt.Print("API key: ")
		key, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading API key: %w", err)
		}
		cfg.Server.APIKey = string(key)

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Device ID:    %s\n", cfg.DeviceID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Primary URL:  %s\n", cfg.Server.PrimaryURL)
		fmt.Printf("Fallback URL: %s\n", cfg.Server.FallbackURL)
		return nil
	},
}

// record command
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Run the capture loop until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Record")
		if err != nil {
			return err
		}
		defer a.Close()

		recorder, err := a.NewRecorder()
		if err != nil {
			return fmt.Errorf("building recorder: %w", err)
		}

		states, unsubscribe := recorder.Subscribe()
		defer unsubscribe()

		if err := recorder.Start(); err != nil {
			return fmt.Errorf("starting recorder: %w", err)
		}
		fmt.Println("Recording. Press Ctrl-C to stop.")

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		for {
			select {
			case <-sigs:
				recorder.Stop()
				fmt.Println("\nStopped.")
				return nil
			case s := <-states:
				fmt.Printf("Recorder: %s\n", s)
			}
		}
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Sync")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Sync(cmd.Context()); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		fmt.Println("Sync complete.")
		return nil
	},
}

// annotate command
var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Manage annotations",
}

var annotateAddCmd = &cobra.Command{
	Use:   "add TEXT",
	Short: "Add an annotation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AddAnnotation")
		if err != nil {
			return err
		}
		defer a.Close()

		ann, err := a.AddAnnotation(args[0])
		if err != nil {
			return fmt.Errorf("adding annotation: %w", err)
		}
		fmt.Printf("Added annotation #%d\n", ann.ID)
		return nil
	},
}

var annotateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List annotations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListAnnotations")
		if err != nil {
			return err
		}
		defer a.Close()

		annotations, err := a.Annotations()
		if err != nil {
			return err
		}

		if len(annotations) == 0 {
			fmt.Println("No annotations.")
			return nil
		}
		for _, ann := range annotations {
			ts := time.UnixMilli(ann.Timestamp).Format("2006-01-02 15:04:05")
			fmt.Printf("#%d  %s  %s\n", ann.ID, ts, ann.Text)
		}
		return nil
	},
}

var annotateDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an annotation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid annotation id: %s", args[0])
		}

		a, err := newApp("DeleteAnnotation")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteAnnotation(id); err != nil {
			return fmt.Errorf("deleting annotation: %w", err)
		}
		fmt.Printf("Deleted annotation #%d\n", id)
		return nil
	},
}

// feed command
var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Browse synced content",
}

var feedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List content in feed order",
	RunE: func(cmd *cobra.Command, args []string) error {
		unviewedOnly, _ := cmd.Flags().GetBool("unviewed")

		a, err := newApp("Feed")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.Feed(unviewedOnly)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No content.")
			return nil
		}
		for _, item := range items {
			var flags string
			switch {
			case item.Clicked:
				flags = "C"
			case item.Viewed:
				flags = "V"
			default:
				flags = " "
			}
			fmt.Printf("#%d  [%s]  %.3f  %s\n", item.ID, flags, item.RankingScore, item.Title)
		}
		return nil
	},
}

func feedFlagCmd(use, short, operation string, apply func(*app.App, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid content id: %s", args[0])
			}

			a, err := newApp(operation)
			if err != nil {
				return err
			}
			defer a.Close()

			return apply(a, id)
		},
	}
}

var feedScoreCmd = &cobra.Command{
	Use:   "score ID SCORE",
	Short: "Score a content entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid content id: %s", args[0])
		}
		score, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid score: %s", args[1])
		}

		a, err := newApp("SetScore")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.SetScore(id, score)
	},
}

// query command
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Manage server-side queries",
}

var queryPostCmd = &cobra.Command{
	Use:   "post TEXT",
	Short: "Submit a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetInt64("from")
		to, _ := cmd.Flags().GetInt64("to")

		a, err := newApp("PostQuery")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.PostQuery(cmd.Context(), args[0], from, to); err != nil {
			return err
		}
		fmt.Println("Query submitted.")
		return nil
	},
}

var queryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queries and results",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListQueries")
		if err != nil {
			return err
		}
		defer a.Close()

		queries, err := a.Queries(cmd.Context())
		if err != nil {
			return err
		}

		if len(queries) == 0 {
			fmt.Println("No queries.")
			return nil
		}
		for _, q := range queries {
			result := q.Result
			if result == "" {
				result = "(pending)"
			}
			fmt.Printf("Q: %s\nA: %s\n\n", q.Query, result)
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local pipeline state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.GetStatus()
		if err != nil {
			return err
		}

		fmt.Printf("Annotations:         %d\n", st.Annotations)
		fmt.Printf("Content items:       %d\n", st.ContentItems)
		fmt.Printf("Pending screenshots: %d\n", st.PendingScreenshots)
		if st.LastSyncTimestamp == 0 {
			fmt.Println("Last sync:           never")
		} else {
			fmt.Printf("Last sync:           %s\n", time.UnixMilli(st.LastSyncTimestamp).Format("2006-01-02 15:04:05"))
		}
		for i, e := range st.Endpoints {
			label := "Primary endpoint"
			if i > 0 {
				label = "Fallback endpoint"
			}
			fmt.Printf("%s:    %s\n", label, e)
		}
		return nil
	},
}

// wipe command
var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all local records",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to wipe without --yes")
		}

		a, err := newApp("Wipe")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Wipe(); err != nil {
			return fmt.Errorf("wiping records: %w", err)
		}
		fmt.Println("All local records deleted.")
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("primary-url", "", "Primary server URL")
	configInitCmd.Flags().String("fallback-url", "", "Fallback server URL")
	configInitCmd.MarkFlagRequired("primary-url")

	// annotate subcommands
	annotateCmd.AddCommand(annotateAddCmd)
	annotateCmd.AddCommand(annotateListCmd)
	annotateCmd.AddCommand(annotateDeleteCmd)

	// feed subcommands
	feedCmd.AddCommand(feedListCmd)
	feedListCmd.Flags().BoolP("unviewed", "u", false, "Only show unviewed content")
	feedCmd.AddCommand(feedFlagCmd("view ID", "Mark content as viewed", "MarkViewed", (*app.App).MarkViewed))
	feedCmd.AddCommand(feedFlagCmd("click ID", "Mark content as clicked", "MarkClicked", (*app.App).MarkClicked))
	feedCmd.AddCommand(feedScoreCmd)

	// query subcommands
	queryCmd.AddCommand(queryPostCmd)
	queryCmd.AddCommand(queryListCmd)
	queryPostCmd.Flags().Int64("from", 0, "Context window start (unix millis)")
	queryPostCmd.Flags().Int64("to", 0, "Context window end (unix millis)")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(wipeCmd)
	wipeCmd.Flags().Bool("yes", false, "Confirm deletion")
}
