package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// runDetectATS resolves the ATS vendor for companies whose type is still
// unknown. Force re-detects companies with an existing assignment, which
// is how an operator recovers from a mass vendor migration.
func (s *Service) runDetectATS(ctx context.Context, run *models.PipelineRun, rl interfaces.RunLogger) (models.RunStats, error) {
	var stats models.RunStats

	companies, err := s.detectScope(ctx, run.Params)
	if err != nil {
		return stats, err
	}
	rl.Info("Detection scope resolved", map[string]interface{}{
		"companies": len(companies),
	})
	if len(companies) == 0 {
		rl.Step("detection finished", 1)
		return stats, nil
	}

	workers := s.cfg.Crawler.Workers
	if workers <= 0 {
		workers = 8
	}
	if workers > len(companies) {
		workers = len(companies)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	queue := make(chan *models.Company)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for company := range queue {
				err := s.detectCompany(ctx, company, rl)

				mu.Lock()
				done++
				stats.Processed++
				if err != nil {
					stats.Failed++
				}
				progress := float64(done) / float64(len(companies))
				mu.Unlock()

				rl.Step(fmt.Sprintf("detect %s", company.Name), progress)
			}
		}()
	}

feed:
	for _, company := range companies {
		select {
		case <-ctx.Done():
			break feed
		case queue <- company:
		}
	}
	close(queue)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	rl.Info("Detection finished", map[string]interface{}{
		"resolved": stats.Processed - stats.Failed,
		"failed":   stats.Failed,
	})
	rl.Step("detection finished", 1)
	return stats, nil
}

func (s *Service) detectScope(ctx context.Context, params models.RunParams) ([]*models.Company, error) {
	if len(params.CompanyIDs) > 0 {
		companies := make([]*models.Company, 0, len(params.CompanyIDs))
		for _, id := range params.CompanyIDs {
			company, err := s.deps.Companies.GetCompany(ctx, id)
			if err != nil {
				s.logger.Warn().Str("company_id", id).Msg("Skipping unknown company in detection scope")
				continue
			}
			companies = append(companies, company)
		}
		return companies, nil
	}

	active := true
	all, err := s.deps.Companies.ListCompanies(ctx, &interfaces.CompanyFilter{IsActive: &active})
	if err != nil {
		return nil, err
	}
	if params.Force {
		return all, nil
	}

	unknown := all[:0]
	for _, company := range all {
		if company.ATSType == "" || company.ATSType == models.ATSUnknown {
			unknown = append(unknown, company)
		}
	}
	return unknown, nil
}

func (s *Service) detectCompany(ctx context.Context, company *models.Company, rl interfaces.RunLogger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := s.deps.Detector.Detect(ctx, company)
	if err != nil {
		rl.Warn("ATS detection failed", map[string]interface{}{
			"company": company.Name,
			"error":   err.Error(),
		})
		return err
	}

	company.ATSType = result.ATSType
	company.ATSIdentifier = result.Identifier
	if result.CareersURL != "" {
		company.CareersURL = result.CareersURL
	}
	company.UpdatedAt = time.Now().UTC()
	if err := s.deps.Companies.SaveCompany(ctx, company); err != nil {
		return err
	}

	rl.Info("ATS resolved", map[string]interface{}{
		"company":  company.Name,
		"ats_type": string(result.ATSType),
		"method":   result.Method,
	})
	return nil
}
