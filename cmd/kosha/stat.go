package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/hupe1980/kosha"
	"github.com/spf13/cobra"
)

type statOutput struct {
	Location        string            `json:"location"`
	Generation      uint64            `json:"generation"`
	CreatedAt       time.Time         `json:"created_at"`
	Codec           string            `json:"codec"`
	CodecVersion    uint32            `json:"codec_version"`
	Compression     string            `json:"compression"`
	BlockSize       int               `json:"block_size"`
	RestartInterval int               `json:"restart_interval"`
	Keys            int               `json:"keys"`
	Entries         uint64            `json:"entries"`
	KindCounts      map[string]uint64 `json:"kind_counts"`
	Segments        []segmentOutput   `json:"segments"`
	TotalBytes      int64             `json:"total_bytes"`
	BloomFPR        float64           `json:"bloom_false_positive_rate"`
}

type segmentOutput struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

func newStatOutput(location string, s kosha.Stats) statOutput {
	out := statOutput{
		Location:        location,
		Generation:      s.Generation,
		CreatedAt:       s.CreatedAt.UTC(),
		Codec:           s.Codec,
		CodecVersion:    s.CodecVersion,
		Compression:     s.Compression.String(),
		BlockSize:       s.BlockSize,
		RestartInterval: s.RestartInterval,
		Keys:            s.Keys,
		Entries:         s.Entries,
		KindCounts:      make(map[string]uint64, len(s.KindCounts)),
		TotalBytes:      s.TotalBytes,
		BloomFPR:        s.BloomFalsePositiveRate,
	}
	for k, n := range s.KindCounts {
		out.KindCounts[k.String()] = n
	}
	for _, seg := range s.Segments {
		out.Segments = append(out.Segments, segmentOutput(seg))
	}
	return out
}

func newStatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stat LOCATION",
		Short: "Print metadata and segment sizes of a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer k.Close()

			out := newStatOutput(args[0], k.Stats())
			if a.v.GetBool("json") {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "location\t%s\n", out.Location)
			fmt.Fprintf(tw, "generation\t%d\n", out.Generation)
			fmt.Fprintf(tw, "created\t%s\n", out.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(tw, "codec\t%s v%d\n", out.Codec, out.CodecVersion)
			fmt.Fprintf(tw, "compression\t%s (block %d)\n", out.Compression, out.BlockSize)
			fmt.Fprintf(tw, "keys\t%d\n", out.Keys)
			fmt.Fprintf(tw, "entries\t%d\n", out.Entries)
			for _, kind := range []string{"tinanta", "subanta"} {
				fmt.Fprintf(tw, "keys with %s\t%d\n", kind, out.KindCounts[kind])
			}
			fmt.Fprintf(tw, "bloom fpr\t%.4f\n", out.BloomFPR)
			for _, seg := range out.Segments {
				fmt.Fprintf(tw, "segment %s\t%s\t%d bytes\n", seg.Kind, seg.Path, seg.Size)
			}
			fmt.Fprintf(tw, "total\t%d bytes\n", out.TotalBytes)
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("json", false, "print JSON")
	addReadFlags(cmd)
	return cmd
}
