package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sierranative/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the on-disk program cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached artifact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := configFrom(cmd).Cache.Dir
		c, err := cache.NewAOTCache(dir, nil)
		if err != nil {
			return err
		}
		if err := c.Clear(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", c.Dir())
		return nil
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the cache directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), configFrom(cmd).Cache.Dir)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePathCmd)
}
