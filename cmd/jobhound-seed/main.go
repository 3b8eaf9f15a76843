package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// Seeder loads development data into a running Jobhound instance through
// its HTTP API
type Seeder struct {
	baseURL string
	client  *http.Client
	logger  arbor.ILogger
}

func NewSeeder(baseURL string, logger arbor.ILogger) *Seeder {
	return &Seeder{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// CheckHealth verifies the service is up before seeding
func (s *Seeder) CheckHealth() error {
	resp, err := s.client.Get(s.baseURL + "/healthz")
	if err != nil {
		return fmt.Errorf("service not reachable at %s: %w", s.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	s.logger.Info().Str("url", s.baseURL).Msg("✓ Service is healthy")
	return nil
}

// ImportCompanies posts the YAML seed file to the import endpoint and
// returns how many companies were enqueued for discovery
func (s *Seeder) ImportCompanies(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	resp, err := s.client.Post(s.baseURL+"/api/admin/companies/import", "application/x-yaml", bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("import request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("import failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Parsed   int `json:"parsed"`
		Enqueued int `json:"enqueued"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode import response: %w", err)
	}

	s.logger.Info().Int("parsed", result.Parsed).Int("enqueued", result.Enqueued).Msg("✓ Companies imported into discovery queue")
	return result.Enqueued, nil
}

// ProcessQueue promotes pending discovery queue items into companies
func (s *Seeder) ProcessQueue() (int, error) {
	resp, err := s.client.Post(s.baseURL+"/api/admin/discovery/process-queue", "application/json", nil)
	if err != nil {
		return 0, fmt.Errorf("process-queue request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("process-queue failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Created int `json:"created"`
		Failed  int `json:"failed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode process-queue response: %w", err)
	}

	s.logger.Info().Int("created", result.Created).Int("failed", result.Failed).Msg("✓ Discovery queue processed")
	return result.Created, nil
}

// TriggerDetection starts an ATS detection run for the new companies
func (s *Seeder) TriggerDetection() (string, error) {
	resp, err := s.client.Post(s.baseURL+"/api/admin/pipeline/detect-ats", "application/json", bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", fmt.Errorf("detect-ats request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("detect-ats failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Run struct {
			ID string `json:"id"`
		} `json:"run"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode detect-ats response: %w", err)
	}

	s.logger.Info().Str("run_id", result.Run.ID).Msg("✓ ATS detection run started")
	return result.Run.ID, nil
}

func main() {
	baseURL := flag.String("url", "http://localhost:8085", "Base URL of the running Jobhound service")
	seedFile := flag.String("file", "./data/companies.yaml", "Path to the companies seed YAML")
	detect := flag.Bool("detect", false, "Trigger an ATS detection run after seeding")
	flag.Parse()

	logger := arbor.NewLogger().WithConsoleWriter(models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
		TextOutput: true,
	}).WithLevelFromString("info")

	seeder := NewSeeder(*baseURL, logger)

	if err := seeder.CheckHealth(); err != nil {
		logger.Fatal().Err(err).Msg("Seed aborted")
	}

	enqueued, err := seeder.ImportCompanies(*seedFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("Company import failed")
	}

	if enqueued > 0 {
		if _, err := seeder.ProcessQueue(); err != nil {
			logger.Fatal().Err(err).Msg("Queue processing failed")
		}
	}

	if *detect {
		if _, err := seeder.TriggerDetection(); err != nil {
			logger.Fatal().Err(err).Msg("Detection trigger failed")
		}
	}

	logger.Info().Msg("Seed complete")
}
