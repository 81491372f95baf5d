package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type jobResult struct {
	RunID    string   `json:"run_id"`
	Total    int      `json:"total"`
	Enriched int      `json:"enriched"`
	Failed   int      `json:"failed"`
	Skipped  int      `json:"skipped"`
	DryRun   bool     `json:"dry_run"`
	Created  []string `json:"applications_created"`
}

type jobResponse struct {
	Message string     `json:"message"`
	JobID   string     `json:"job_id"`
	ID      string     `json:"id"`
	Status  string     `json:"status"`
	Result  *jobResult `json:"result"`
	Error   string     `json:"error"`
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8081", "API base URL")
	adminSecretFlag := flag.String("admin-secret", "", "Admin secret (or use ADMIN_SECRET env)")
	dryRun := flag.Bool("dry-run", false, "Ask the server for a dry run")
	force := flag.Bool("force", false, "Re-enrich already enriched grants")
	batchSize := flag.Int("batch-size", 0, "Batch size (server default when 0)")
	grantID := flag.String("id", "", "Only enrich this grant")
	wait := flag.Bool("wait", true, "Poll job status until the run finishes")
	pollEvery := flag.Duration("poll", 5*time.Second, "Status poll interval")
	timeout := flag.Duration("timeout", 30*time.Minute, "Give up waiting after this long")
	flag.Parse()

	adminSecret := strings.TrimSpace(*adminSecretFlag)
	if adminSecret == "" {
		adminSecret = strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	}
	if adminSecret == "" {
		exitErr(errors.New("missing admin secret: use -admin-secret or ADMIN_SECRET env"))
	}

	client := &http.Client{Timeout: 30 * time.Second}
	base := strings.TrimRight(*baseURL, "/") + "/api/v1/admin/enrich-grants"

	u, err := url.Parse(base)
	if err != nil {
		exitErr(err)
	}
	q := u.Query()
	q.Set("dry_run", strconv.FormatBool(*dryRun))
	q.Set("force", strconv.FormatBool(*force))
	if *batchSize > 0 {
		q.Set("batch_size", strconv.Itoa(*batchSize))
	}
	if *grantID != "" {
		q.Set("id", *grantID)
	}
	u.RawQuery = q.Encode()

	started, status, err := call(client, http.MethodPost, u.String(), adminSecret)
	if err != nil {
		exitErr(err)
	}
	fmt.Printf("Response Status: %d, job %s\n", status, started.JobID)
	if !*wait {
		return
	}

	deadline := time.Now().Add(*timeout)
	for time.Now().Before(deadline) {
		time.Sleep(*pollEvery)
		job, _, err := call(client, http.MethodGet, base+"/status", adminSecret)
		if err != nil {
			exitErr(err)
		}
		if job.Status == "running" {
			fmt.Print(".")
			continue
		}
		fmt.Println()
		printJob(job)
		if job.Status != "completed" {
			os.Exit(1)
		}
		return
	}
	exitErr(fmt.Errorf("job %s still running after %s", started.JobID, *timeout))
}

func call(client *http.Client, method, reqURL, adminSecret string) (*jobResponse, int, error) {
	req, err := http.NewRequest(method, reqURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("X-Admin-Secret", adminSecret)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var payload jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if payload.Error == "" {
			return &payload, resp.StatusCode, fmt.Errorf("http %d", resp.StatusCode)
		}
		return &payload, resp.StatusCode, fmt.Errorf("http %d: %s", resp.StatusCode, payload.Error)
	}
	return &payload, resp.StatusCode, nil
}

func printJob(job *jobResponse) {
	fmt.Printf("Job %s: %s\n", job.ID, job.Status)
	if job.Error != "" {
		fmt.Printf("Error: %s\n", job.Error)
	}
	if r := job.Result; r != nil {
		fmt.Printf("Run %s (dry_run=%t): total=%d enriched=%d failed=%d skipped=%d\n",
			r.RunID, r.DryRun, r.Total, r.Enriched, r.Failed, r.Skipped)
		for _, name := range r.Created {
			fmt.Printf("  application created: %s\n", name)
		}
	}
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
