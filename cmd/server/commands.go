package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Skufu/neurorisk/internal/assessment"
	"github.com/Skufu/neurorisk/internal/catalog"
	"github.com/Skufu/neurorisk/internal/config"
)

func fieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields [test]",
		Short: "Print the input fields of every test, or of one test",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tests := catalog.Default().Tests()
			if len(args) == 1 {
				t, ok := catalog.Default().Test(args[0])
				if !ok {
					return fmt.Errorf("unknown test %q", args[0])
				}
				tests = []*catalog.Test{t}
			}
			return printFields(cmd.OutOrStdout(), tests)
		},
	}
}

func printFields(w io.Writer, tests []*catalog.Test) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, t := range tests {
		fmt.Fprintf(tw, "%s\t%s\tfallback=%t\n", t.ID, t.Name, t.Fallback)
		for _, f := range t.Fields {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", f.Key, f.Label, f.Placeholder(), f.Feature)
		}
	}
	return tw.Flush()
}

func assessCmd() *cobra.Command {
	var (
		testID string
		pairs  []string
	)
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Score one set of values against the configured model",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := catalog.Default().Test(testID)
			if !ok {
				return fmt.Errorf("unknown test %q", testID)
			}
			values, err := parseValues(pairs)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr()).Level(zerolog.WarnLevel)
			engine := assessment.NewEngine(newScorer(cfg, logger, nil), logger)

			ra, err := runAssessment(cmd, engine, t, values)
			if err != nil {
				var verr *assessment.ValidationError
				switch {
				case errors.As(err, &verr):
					printFieldErrors(cmd.ErrOrStderr(), verr.Fields)
					return errors.New(verr.Error())
				case errors.Is(err, assessment.ErrPredictionUnavailable):
					return errors.New(assessment.PredictionFailedMessage)
				}
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ra)
		},
	}
	cmd.Flags().StringVar(&testID, "test", "", "test id, e.g. parkinson")
	cmd.Flags().StringArrayVar(&pairs, "value", nil, "field value as key=value, repeatable")
	_ = cmd.MarkFlagRequired("test")
	return cmd
}

// runAssessment drives a throwaway form the same way a screen would.
func runAssessment(cmd *cobra.Command, engine *assessment.Engine, t *catalog.Test, values map[string]string) (*assessment.RiskAssessment, error) {
	f := assessment.NewForm(t, engine)
	defer f.Close()

	for key, raw := range values {
		fb, err := f.Change(key, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if fb.Malformed {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s (using %q)\n", key, fb.Hint, fb.Value)
		}
	}
	return f.Submit(cmd.Context())
}

func parseValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --value %q, want key=value", p)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

func printFieldErrors(w io.Writer, fields assessment.ValidationResult) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, fields[k])
	}
}
