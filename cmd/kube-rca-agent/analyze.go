package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kube-rca/agent/internal/domain/model"
)

type analyzeOptions struct {
	alertFile  string
	threadTS   string
	incidentID string
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyse one alert and print the result as JSON",
		Long: `Analyse one alert without starting the server.

The input is either an analyze request ({"alert": {...}, "thread_ts": "..."})
or a bare Alertmanager alert object. Use "-" to read from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			req, err := readAnalyzeRequest(cmd.InOrStdin(), opts.alertFile)
			if err != nil {
				return err
			}
			if opts.threadTS != "" {
				req.ThreadTS = opts.threadTS
			}
			if opts.incidentID != "" {
				req.IncidentID = opts.incidentID
			}

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.service.AnalyzeAlert(cmd.Context(), req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVarP(&opts.alertFile, "alert", "f", "", "alert JSON file, or - for stdin")
	cmd.Flags().StringVar(&opts.threadTS, "thread-ts", "", "Slack thread timestamp to notify")
	cmd.Flags().StringVar(&opts.incidentID, "incident-id", "", "incident id used for the session key")
	_ = cmd.MarkFlagRequired("alert")
	return cmd
}

func readAnalyzeRequest(stdin io.Reader, path string) (model.AlertAnalysisRequest, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return model.AlertAnalysisRequest{}, fmt.Errorf("reading alert: %w", err)
	}

	var req model.AlertAnalysisRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return model.AlertAnalysisRequest{}, fmt.Errorf("decoding alert: %w", err)
	}
	if req.Alert != nil {
		return req, nil
	}

	var alert model.Alert
	if err := json.Unmarshal(data, &alert); err != nil {
		return model.AlertAnalysisRequest{}, fmt.Errorf("decoding alert: %w", err)
	}
	if len(alert.Labels) == 0 && alert.Status == "" {
		return model.AlertAnalysisRequest{}, fmt.Errorf("decoding alert: no alert found in %s", path)
	}
	return model.AlertAnalysisRequest{Alert: &alert}, nil
}
