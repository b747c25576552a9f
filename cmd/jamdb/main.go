package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abought/jamdb/pkg/backend/memory"
	"github.com/abought/jamdb/pkg/collection"
	"github.com/abought/jamdb/pkg/config"
	"github.com/abought/jamdb/pkg/log"
	"github.com/abought/jamdb/pkg/state"

	// Register the boltdb backend
	_ "github.com/abought/jamdb/pkg/backend/boltdb"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jamdb",
	Short: "jamdb - versioned, event-sourced document collections",
	Long: `jamdb stores documents as the deterministic replay of an append-only
log against a content-addressed blob store, with snapshots to bound
replay cost and point-in-time reads over the full history.`,
	Version: Version,
}

var cfg *config.Config

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"jamdb version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringP("config", "c", "jamdb.yaml", "Config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(regenerateCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// openCollection loads the config and instantiates the named collection
func openCollection(cmd *cobra.Command, name string) (*collection.Collection, error) {
	path, _ := cmd.Flags().GetString("config")

	var err error
	cfg, err = config.Load(path)
	if err != nil {
		return nil, err
	}
	desc, err := cfg.Descriptor(name)
	if err != nil {
		return nil, err
	}
	col, err := collection.FromDescriptor(desc)
	if err != nil {
		return nil, err
	}
	if _, err := col.Regenerate(); err != nil {
		return nil, err
	}
	return col, nil
}

var keysCmd = &cobra.Command{
	Use:   "keys <collection>",
	Short: "List document keys in a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd, args[0])
		if err != nil {
			return err
		}
		keys, err := col.Keys()
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read <collection> <key>",
	Short: "Read a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd, args[0])
		if err != nil {
			return err
		}
		atTime, _ := cmd.Flags().GetFloat64("at-time")

		if atTime > 0 {
			frozen, err := col.AtTime(atTime, freshState(), true)
			if err != nil {
				return err
			}
			doc, err := frozen.Read(args[1])
			if err != nil {
				return err
			}
			return printJSON(doc)
		}

		doc, err := col.Read(args[1])
		if err != nil {
			return err
		}
		return printJSON(doc)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <collection> <key>",
	Short: "Show every log entry for a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd, args[0])
		if err != nil {
			return err
		}
		entries, err := col.History(args[1])
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := printJSON(entry); err != nil {
				return err
			}
		}
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <collection>",
	Short: "Snapshot the live state to bound future replay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd, args[0])
		if err != nil {
			return err
		}
		entry, err := col.Snapshot()
		if err != nil {
			return err
		}
		fmt.Printf("snapshot %s at %f\n", entry.Ref, entry.ModifiedOn)
		return nil
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <collection>",
	Short: "Rebuild state from the log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd, args[0])
		if err != nil {
			return err
		}
		replayed, err := col.Regenerate()
		if err != nil {
			return err
		}
		fmt.Printf("replayed %d log entries past the snapshot\n", replayed)
		return nil
	},
}

// freshState backs a time-travel view with a scratch in-memory state
func freshState() *state.State {
	return state.New(memory.New())
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

func init() {
	readCmd.Flags().Float64("at-time", 0, "Read the collection as of this timestamp")
}
