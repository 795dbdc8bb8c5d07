package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

type generateResponse struct {
	Codes []string `json:"codes"`
	Days  int      `json:"days"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newRootCmd() *cobra.Command {
	var (
		host  string
		token string
		count int
		days  int
		out   string
	)

	cmd := &cobra.Command{
		Use:          "codegen",
		Short:        "Generate FANVIP license codes through the admin API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("ADMIN_TOKEN")
			}
			if token == "" {
				return fmt.Errorf("--token or ADMIN_TOKEN is required")
			}

			codes, err := generate(host, token, count, days)
			if err != nil {
				return err
			}
			if err := writeCSV(out, codes, days); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %d codes written to %s\n", len(codes), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "http://localhost:5000", "bot base URL")
	cmd.Flags().StringVar(&token, "token", "", "admin token (defaults to $ADMIN_TOKEN)")
	cmd.Flags().IntVar(&count, "count", 1, "number of codes to generate (1-500)")
	cmd.Flags().IntVar(&days, "days", 30, "membership days per code")
	cmd.Flags().StringVar(&out, "out", "codes.csv", "output CSV path")
	return cmd
}

func generate(host, token string, count, days int) ([]string, error) {
	var (
		result generateResponse
		apiErr errorResponse
	)
	resp, err := resty.New().
		SetTimeout(30*time.Second).
		R().
		SetHeader("X-Admin-Token", token).
		SetBody(map[string]int{"count": count, "days": days}).
		SetResult(&result).
		SetError(&apiErr).
		Post(strings.TrimRight(host, "/") + "/admin/generate_codes")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode(), apiErr.Error)
	}
	return result.Codes, nil
}

func writeCSV(path string, codes []string, days int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"code", "days"}); err != nil {
		return err
	}
	for _, c := range codes {
		if err := w.Write([]string{c, strconv.Itoa(days)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
