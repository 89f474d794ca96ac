package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/JonMunkholm/ndjson-import/internal/core"
	"gopkg.in/yaml.v3"
)

type renderer func(io.Writer, *core.RunSummary) error

func rendererFor(format string) (renderer, error) {
	switch format {
	case "text", "":
		return renderText, nil
	case "json":
		return renderJSON, nil
	case "yaml":
		return renderYAML, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func renderJSON(w io.Writer, s *core.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func renderYAML(w io.Writer, s *core.RunSummary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

func renderText(w io.Writer, s *core.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "State:\t%s\n", s.State)
	fmt.Fprintf(tw, "Lines:\t%d total, %d valid, %d header, %d rejected\n",
		s.TotalLines, s.ValidLines, s.HeaderLines, s.ParseErrors)
	fmt.Fprintf(tw, "Groups:\t%d (%d succeeded, %d failed)\n",
		s.GroupCount, s.SucceededGroups(), len(s.FailedGroups()))
	fmt.Fprintf(tw, "Bytes:\t%d (xxh64 %s)\n", s.BytesRead, s.Checksum)
	fmt.Fprintf(tw, "Duration:\t%dms\n", s.TotalDurationMs)

	if len(s.Groups) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "GROUP\tSIZE\tSTATUS\tREASON")
		for _, g := range s.Groups {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", g.Key, g.Size, g.Status, g.Reason)
		}
	}

	if len(s.LineErrors) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "LINE\tKIND\tDETAIL")
		for _, le := range s.LineErrors {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", le.Line, le.Kind, le.Detail)
		}
		if hidden := s.ParseErrors - len(s.LineErrors); hidden > 0 {
			fmt.Fprintf(tw, "...\t\t%d more\n", hidden)
		}
	}

	return tw.Flush()
}
