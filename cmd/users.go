package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jon4hz/profilehub/internal/config"
	"github.com/jon4hz/profilehub/internal/database"
	"github.com/mergestat/timediff"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users",
	Long:  `Print every registered account with its signup time and current profile picture.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := database.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close() //nolint: errcheck

		users, err := db.GetAllUsers(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		return printUsers(cmd.OutOrStdout(), users, time.Now())
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
}

func printUsers(out io.Writer, users []database.User, now time.Time) error {
	if len(users) == 0 {
		_, err := fmt.Fprintln(out, "No users registered.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tJOINED\tPROFILE PIC") //nolint:errcheck
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", //nolint:errcheck
			u.ID,
			u.Username,
			u.Email,
			timediff.TimeDiff(u.CreatedAt, timediff.WithStartTime(now)),
			lo.FromPtrOr(u.ProfilePic, "-"),
		)
	}
	return w.Flush()
}
