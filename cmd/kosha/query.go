package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hupe1980/kosha"
	"github.com/hupe1980/kosha/codec"
	"github.com/hupe1980/kosha/entry"
	"github.com/spf13/cobra"
)

func (a *app) open(ctx context.Context, raw string) (*kosha.Kosha, error) {
	loc, err := parseLocation(raw)
	if err != nil {
		return nil, err
	}
	opts := append(a.options(), kosha.WithBlockCacheSize(a.v.GetInt64("block-cache-size")))
	if loc.scheme == "file" {
		return kosha.Open(ctx, loc.path, opts...)
	}
	store, err := a.openStore(ctx, loc)
	if err != nil {
		return nil, err
	}
	return kosha.OpenStore(ctx, store, opts...)
}

func addReadFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("block-cache-size", kosha.DefaultBlockCacheSize, "bytes of decompressed entry blocks cached in memory")
}

func newGetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get LOCATION KEY...",
		Short: "Print the entries of keys as JSON lines",
		Long: `Prints every entry stored under each key in insertion order, one JSON line
per entry in the same form build reads. Keys without entries print nothing.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var kind entry.Kind
			if s := a.v.GetString("kind"); s != "" {
				k, err := parseKind(s)
				if err != nil {
					return err
				}
				kind = k
			}

			k, err := a.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer k.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			var jc codec.JSON
			for _, key := range args[1:] {
				entries, err := k.GetAll(ctx, key)
				if err != nil {
					return err
				}
				for _, e := range entries {
					if kind != 0 && e.Kind() != kind {
						continue
					}
					raw, err := jc.Append(nil, e)
					if err != nil {
						return err
					}
					if err := enc.Encode(inputRecord{Key: key, Entry: raw}); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().String("kind", "", "only print entries of this kind (tinanta, subanta)")
	addReadFlags(cmd)
	return cmd
}

func parseKind(s string) (entry.Kind, error) {
	for _, k := range entry.Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown entry kind %q", s)
}

func newPrefixCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefix LOCATION PREFIX...",
		Short: "Report whether any key starts with each prefix",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer k.Close()

			for _, p := range args[1:] {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p, strconv.FormatBool(k.ContainsPrefix(p)))
			}
			return nil
		},
	}
	addReadFlags(cmd)
	return cmd
}

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys LOCATION [PREFIX]",
		Short: "List keys in order, optionally restricted to a prefix",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix string
			if len(args) == 2 {
				prefix = args[1]
			}
			k, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer k.Close()

			limit := a.v.GetInt("limit")
			n := 0
			for key := range k.Keys(prefix) {
				if limit > 0 && n == limit {
					break
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
				n++
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "stop after this many keys, 0 for all")
	addReadFlags(cmd)
	return cmd
}
