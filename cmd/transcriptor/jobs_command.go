package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"transcriptor/internal/jobs"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

type jobListing struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	StatusLine  string `json:"status_line"`
	Progress    int    `json:"progress"`
	Error       string `json:"error"`
	DownloadURL string `json:"download_url"`
	CreatedAt   string `json:"created_at"`
}

func newJobsCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List jobs known to the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			listings, err := fetchJobs(cfg.Paths.APIBind)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(listings) == 0 {
				fmt.Fprintln(out, "No jobs.")
				return nil
			}

			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(listings))
			for _, listing := range listings {
				rows = append(rows, []string{
					listing.ID,
					statusLabel(listing.Status, colorize),
					strconv.Itoa(listing.Progress) + "%",
					formatCreatedAt(listing.CreatedAt),
					jobDetail(listing),
				})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Progress", "Created", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func fetchJobs(bind string) ([]jobListing, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get("http://" + bind + "/api/jobs")
	if err != nil {
		return nil, fmt.Errorf("contact daemon at %s: %w", bind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("daemon returned %s: %s", resp.Status, string(body))
	}

	var payload struct {
		Jobs []jobListing `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode job list: %w", err)
	}
	return payload.Jobs, nil
}

func statusLabel(status string, colorize bool) string {
	label := cases.Title(language.Und).String(status)
	if !colorize {
		return label
	}
	switch jobs.Status(status) {
	case jobs.StatusDone:
		return ansiGreen + label + ansiReset
	case jobs.StatusFailed:
		return ansiRed + label + ansiReset
	case jobs.StatusProcessing, jobs.StatusPackaging:
		return ansiYellow + label + ansiReset
	default:
		return label
	}
}

func jobDetail(listing jobListing) string {
	if listing.Error != "" {
		return listing.Error
	}
	return listing.StatusLine
}

func formatCreatedAt(value string) string {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
