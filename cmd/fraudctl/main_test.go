package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var bundledDir = filepath.Join("..", "..", "artifacts")

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("ARTIFACT_SOURCE", "file")

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestPredict_Stdin(t *testing.T) {
	input := `[
	  {"step":1,"type":"TRANSFER","amount":181,"nameOrig":"C1305486145","oldbalanceOrg":181,"newbalanceOrig":0,"nameDest":"C553264065","oldbalanceDest":0,"newbalanceDest":0},
	  {"step":1,"type":"PAYMENT","amount":9839.64,"nameOrig":"C1231006815","oldbalanceOrg":170136,"newbalanceOrig":160296.36,"nameDest":"M1979787155","oldbalanceDest":0,"newbalanceDest":0}
	]`

	out, _, err := execute(t, input, "predict", "--dir", bundledDir)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}

	var records []map[string]any
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("Failed to decode output %q: %v", out, err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["prediction"] != float64(1) {
		t.Errorf("emptying transfer prediction = %v, want 1", records[0]["prediction"])
	}
	if records[1]["prediction"] != float64(0) {
		t.Errorf("payment prediction = %v, want 0", records[1]["prediction"])
	}
	if records[0]["nameOrig"] != "C1305486145" {
		t.Errorf("nameOrig = %v, want the original value", records[0]["nameOrig"])
	}
}

func TestPredict_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.json")
	body := `{"step":1,"type":"PAYMENT","amount":9839.64,"oldbalanceOrg":170136,"newbalanceOrig":160296.36,"oldbalanceDest":0,"newbalanceDest":0}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, "", "predict", "--dir", bundledDir, "--pretty", path)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if !strings.Contains(out, `"prediction": 0`) {
		t.Errorf("output = %s, want an indented prediction of 0", out)
	}
}

func TestPredict_ErrorPayload(t *testing.T) {
	_, stderr, err := execute(t, "[]", "predict", "--dir", bundledDir)
	if err == nil {
		t.Fatal("predict expected error for empty input, got nil")
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(stderr), &payload); err != nil {
		t.Fatalf("Failed to decode error payload %q: %v", stderr, err)
	}
	if payload["error"] != "No data provided" {
		t.Errorf("error = %q, want %q", payload["error"], "No data provided")
	}
}

func TestArtifactsVerify(t *testing.T) {
	out, _, err := execute(t, "", "artifacts", "verify", "--dir", bundledDir)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	for _, want := range []string{"Version:    2024.1", "blake2b-256, verified", "Classifier: compatible"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestArtifactsVerify_DigestMismatch(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"manifest.yaml", "encoder.json", "scaler.json", "classifier.json"} {
		data, err := os.ReadFile(filepath.Join(bundledDir, name))
		if err != nil {
			t.Fatal(err)
		}
		if name == "scaler.json" {
			data = append(data, '\n')
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if _, _, err := execute(t, "", "artifacts", "verify", "--dir", dir); err == nil {
		t.Error("verify expected digest error for a modified scaler, got nil")
	}
}

func TestArtifactsDigest(t *testing.T) {
	path := filepath.Join(bundledDir, "encoder.json")
	out, _, err := execute(t, "", "artifacts", "digest", path)
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}

	want := "4f02730f3f8b5af91b73b2eaac5d58e0942960cf336d8fa4f206bf33b0bcb4f0  " + path + "\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestPredict_Batch(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"transfer.json": `{"step":1,"type":"TRANSFER","amount":181,"oldbalanceOrg":181,"newbalanceOrig":0,"oldbalanceDest":0,"newbalanceDest":0}`,
		"payment.json":  `{"step":1,"type":"PAYMENT","amount":9839.64,"oldbalanceOrg":170136,"newbalanceOrig":160296.36,"oldbalanceDest":0,"newbalanceDest":0}`,
		"empty.json":    `[]`,
	}
	var args []string
	for _, name := range []string{"transfer.json", "payment.json", "empty.json"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(files[name]), 0o644); err != nil {
			t.Fatal(err)
		}
		args = append(args, path)
	}

	out, _, err := execute(t, "", append([]string{"predict", "--dir", bundledDir, "--workers", "2"}, args...)...)
	if err == nil {
		t.Error("predict expected error when one file fails, got nil")
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}

	var first, last struct {
		File    string           `json:"file"`
		Records []map[string]any `json:"records"`
		Error   map[string]any   `json:"error"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first.File != args[0] || len(first.Records) != 1 || first.Records[0]["prediction"] != float64(1) {
		t.Errorf("first line = %s", lines[0])
	}
	if err := json.Unmarshal([]byte(lines[2]), &last); err != nil {
		t.Fatal(err)
	}
	if last.Error["error"] != "No data provided" {
		t.Errorf("last line = %s, want a no-data error", lines[2])
	}
}
