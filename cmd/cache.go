package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the avatar cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print avatar cache occupancy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.cache.GetStats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("entries: %d/%d\nmax age: %s\nin memory: %d (%s)\n",
			st.Entries, st.MaxEntries, st.MaxAge, st.MemoryEntries, st.HumanSize)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [chatId]",
	Short: "Clear the whole avatar cache, or one chat",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			if err := a.cache.ClearChat(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("avatar of chat %s removed\n", args[0])
			return nil
		}
		if err := a.cache.ClearCache(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("avatar cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
