package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"fraudserve/internal/domain/prediction"
	"fraudserve/internal/domain/transaction"
	"fraudserve/internal/interfaces/batch"
	"fraudserve/internal/shared/bootstrap"
)

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict [file]...",
		Short: "Score a JSON record or array of records",
		Long: `Reads one JSON transaction object or an array of them from file (or stdin
when file is omitted or "-") and prints the records with a prediction field.

Failures are printed as the same error payload the HTTP API returns.

With several files, they are scored concurrently and one JSON line is printed
per file, in argument order.`,
		RunE: runPredict,
	}

	cmd.Flags().BoolP("pretty", "p", false, "Indent the JSON output")
	cmd.Flags().IntP("workers", "w", runtime.NumCPU(), "Concurrent workers when scoring several files")
	cmd.Flags().Duration("timeout", 0, "Per-file timeout when scoring several files (0 disables)")

	return cmd
}

func runPredict(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return runBatch(cmd, args)
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	body, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	pipeline, closeFn, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	pretty, _ := cmd.Flags().GetBool("pretty")

	records, err := prediction.ParseInput(body)
	if err == nil {
		var result *prediction.Result
		if result, err = pipeline.Predict(cmd.Context(), records); err == nil {
			return encode(cmd.OutOrStdout(), result.Records, pretty)
		}
	}

	if encErr := encode(cmd.ErrOrStderr(), prediction.PayloadFor(err), pretty); encErr != nil {
		return encErr
	}
	return err
}

func encode(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// batchLine is one line of batch output.
type batchLine struct {
	File    string                `json:"file"`
	Version string                `json:"version,omitempty"`
	Records []*transaction.Record `json:"records,omitempty"`
	Error   *prediction.Payload   `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, files []string) error {
	jobs := make([]batch.Job, 0, len(files))
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		jobs = append(jobs, batch.Job{Name: name, Input: data})
	}

	pipeline, closeFn, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	workers, _ := cmd.Flags().GetInt("workers")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	outcomes := batch.NewPool(pipeline, workers, timeout).Run(cmd.Context(), jobs)

	failed := 0
	for _, o := range outcomes {
		line := batchLine{File: o.Name}
		if o.Err != nil {
			failed++
			payload := prediction.PayloadFor(o.Err)
			line.Error = &payload
		} else {
			line.Version = o.Result.Version
			line.Records = o.Result.Records
		}
		if err := encode(cmd.OutOrStdout(), line, false); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(outcomes))
	}
	return nil
}

func openPipeline(cmd *cobra.Command) (*prediction.Pipeline, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	artifacts, err := bootstrap.LoadArtifacts(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	pipeline, err := bootstrap.NewPipeline(cfg, artifacts)
	if err != nil {
		artifacts.Close()
		return nil, nil, err
	}
	return pipeline, artifacts.Close, nil
}
