package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/pkg/chatview"
)

var chatsCmd = &cobra.Command{
	Use:   "chats [query]",
	Short: "Load and print the chat list with message counts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  listChats,
}

func init() {
	rootCmd.AddCommand(chatsCmd)
}

func listChats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.chats.Load(ctx)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		items = chatview.Search(items, args[0])
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tMINE\tLAST ACTIVITY")
	for _, it := range items {
		count := "-"
		if !it.IsPrivate() && it.CountLoaded {
			count = humanize.Comma(int64(it.MessageCount))
		}
		last := "-"
		if !it.Timestamp.IsZero() {
			last = humanize.Time(it.Timestamp)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Name, it.Type, count, last)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d chats (%d private)\n", len(items), countPrivate(items))
	return nil
}

func countPrivate(items []chat.Item) int {
	n := 0
	for _, it := range items {
		if it.IsPrivate() {
			n++
		}
	}
	return n
}
