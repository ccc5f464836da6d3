package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sillysearch/internal/state"
	"github.com/ShayCichocki/sillysearch/pkg/models"
)

var (
	threadsLimit     int
	threadsOutput    string
	threadsOlderThan time.Duration
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Manage saved research threads",
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openState(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		threads, err := db.ListThreads(threadsLimit)
		if err != nil {
			return err
		}
		if len(threads) == 0 {
			fmt.Println("No threads yet.")
			return nil
		}
		printThreads(os.Stdout, threads)
		return nil
	},
}

var threadsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a thread's conversation and report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openState(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		t, err := db.GetThread(args[0])
		if err != nil {
			return err
		}
		msgs, err := db.Messages(t.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s [%s]\n\n", color.CyanString(t.ID), t.Title, t.Status)
		printConversation(os.Stdout, msgs)

		if r, err := db.GetReport(t.ID); err == nil {
			fmt.Printf("\n%s\n%s\n", color.GreenString("Report:"), r.Report)
		}
		return nil
	},
}

var threadsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a thread as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openState(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		w := io.Writer(os.Stdout)
		if threadsOutput != "" {
			f, err := os.Create(threadsOutput)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer f.Close()
			w = f
		}
		return db.ExportThread(args[0], w)
	},
}

var threadsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete threads not updated recently",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openState(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.PurgeOldThreads(threadsOlderThan)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Deleted %d threads", n), color.FgGreen)
		return nil
	},
}

func init() {
	threadsListCmd.Flags().IntVarP(&threadsLimit, "limit", "n", 20, "Maximum number of threads to list (0 for all)")
	threadsExportCmd.Flags().StringVarP(&threadsOutput, "output", "o", "", "Write to this file instead of stdout")
	threadsPurgeCmd.Flags().DurationVar(&threadsOlderThan, "older-than", 30*24*time.Hour, "Delete threads idle for longer than this")

	threadsCmd.AddCommand(threadsListCmd)
	threadsCmd.AddCommand(threadsShowCmd)
	threadsCmd.AddCommand(threadsExportCmd)
	threadsCmd.AddCommand(threadsPurgeCmd)
}

func printThreads(w io.Writer, threads []state.Thread) {
	for _, t := range threads {
		fmt.Fprintf(w, "%s  %-13s  %s  %s\n",
			t.ID, t.Status, t.UpdatedAt.Local().Format("2006-01-02 15:04"), t.Title)
	}
}

func printConversation(w io.Writer, msgs []models.Message) {
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			fmt.Fprintf(w, "%s %s\n", color.BlueString("you:"), m.Content)
		case models.RoleAssistant:
			fmt.Fprintf(w, "%s %s\n", color.MagentaString("sillysearch:"), m.Content)
		}
	}
}
