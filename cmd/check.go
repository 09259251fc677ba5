package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/pscan/internal/models"
	"github.com/BetterCallFirewall/pscan/internal/pscan"
)

func newCheckCmd(opts *globalOptions) *cobra.Command {
	var (
		method string
		url    string
	)

	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Run passive rules against a raw HTTP response (file or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(opts)
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			alerts, err := check(e, in, models.RequestHeader{Method: method, URL: url})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(alerts)
		},
	}
	cmd.Flags().StringVar(&method, "method", "GET", "request method to attribute the response to")
	cmd.Flags().StringVar(&url, "url", "", "request URL to attribute the response to")
	return cmd
}

// check разбирает ответ и прогоняет его через включенные правила.
// Нераспознанная строка статуса или битые заголовки не ошибка: это только предупреждение.
func check(e *env, in io.Reader, req models.RequestHeader) ([]models.Alert, error) {
	resp, err := models.ParseResponse(in)
	switch {
	case err == nil:
	case models.IsMalformed(err):
		e.logger.Warn("Response parsed with problems", zap.Error(err))
	default:
		return nil, fmt.Errorf("parse response: %w", err)
	}

	scanner := pscan.NewScanner(e.registry, pscan.SinkFunc(func(models.Alert) {}), e.logger, pscan.Options{Workers: 1})
	alerts := scanner.ScanMessage(models.NewHTTPMessage(req, resp))
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return alerts, nil
}
