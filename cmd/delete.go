package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/pkg/timeutils"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete your own messages from the given chats",
	RunE:  deleteMessages,
}

func init() {
	deleteCmd.Flags().StringSlice("chat", nil, "chat id to clean, repeatable")
	deleteCmd.Flags().String("range", string(timeutils.RangeLastDay), "time range: last_day, last_week, all or custom")
	deleteCmd.Flags().String("from", "", "first day of a custom range (YYYY-MM-DD)")
	deleteCmd.Flags().String("to", "", "last day of a custom range (YYYY-MM-DD)")
	_ = deleteCmd.MarkFlagRequired("chat")
	rootCmd.AddCommand(deleteCmd)
}

func deleteMessages(cmd *cobra.Command, _ []string) error {
	chatIDs, _ := cmd.Flags().GetStringSlice("chat")
	r, _ := cmd.Flags().GetString("range")
	req := chat.DeletionRequest{ChatIDs: chatIDs, Range: timeutils.Range(r)}

	if req.Range == timeutils.RangeCustom {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		custom, err := parseDays(from, to)
		if err != nil {
			return err
		}
		req.Custom = custom
	}

	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.deletion.Delete(cmd.Context(), req)
	fmt.Printf("job %s: %d deleted, %d failed\n", res.JobID, res.DeletedCount, res.FailedCount)
	for _, e := range res.Errors {
		fmt.Println("  " + e)
	}
	return err
}

func parseDays(from, to string) (*timeutils.DateRange, error) {
	start, err := time.ParseInLocation(time.DateOnly, from, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --from: %w", err)
	}
	end, err := time.ParseInLocation(time.DateOnly, to, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --to: %w", err)
	}
	return &timeutils.DateRange{Start: start, End: end}, nil
}
