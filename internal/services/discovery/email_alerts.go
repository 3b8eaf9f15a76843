package discovery

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/models"
)

// alertBoardPatterns pick hosted-board links out of alert bodies. A
// board link pins the vendor and identifier, so these candidates skip
// ATS detection entirely.
var alertBoardPatterns = []struct {
	ats     models.ATSType
	pattern *regexp.Regexp
}{
	{models.ATSGreenhouse, regexp.MustCompile(`https?://(?:boards|job-boards)\.greenhouse\.io/([A-Za-z0-9_-]+)`)},
	{models.ATSLever, regexp.MustCompile(`https?://jobs\.lever\.co/([A-Za-z0-9_-]+)`)},
	{models.ATSAshby, regexp.MustCompile(`https?://jobs\.ashbyhq\.com/([A-Za-z0-9_-]+)`)},
	{models.ATSWorkable, regexp.MustCompile(`https?://apply\.workable\.com/([A-Za-z0-9_-]+)`)},
	// Workday identifiers are the tenant subdomain; the site comes from
	// the careers URL during extraction
	{models.ATSWorkday, regexp.MustCompile(`https?://([a-z0-9-]+)\.wd\d+\.myworkdayjobs\.com[^\s"'<>)\]]*`)},
}

var alertLinkPattern = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

var subjectNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)new jobs? at ([A-Za-z0-9&.' -]+?)(?:\s*[|:]|$)`),
	regexp.MustCompile(`(?i)^([A-Za-z0-9&.' -]+?) is hiring`),
	regexp.MustCompile(`(?i)jobs? from ([A-Za-z0-9&.' -]+?)(?:\s*[|:]|$)`),
}

// EmailAlertsSource turns job-alert emails in a dedicated inbox into
// company candidates. Messages are consumed once: anything that passes
// the subject filter is parsed and then marked read.
type EmailAlertsSource struct {
	cfg    common.IMAPDiscoveryConfig
	logger arbor.ILogger
}

func NewEmailAlertsSource(cfg common.IMAPDiscoveryConfig, logger arbor.ILogger) *EmailAlertsSource {
	return &EmailAlertsSource{cfg: cfg, logger: logger}
}

func (s *EmailAlertsSource) Name() string { return models.SourceEmailAlerts }

func (s *EmailAlertsSource) Description() string {
	return "Companies mentioned in job alert emails from the configured inbox"
}

func (s *EmailAlertsSource) Enabled() bool {
	return s.cfg.Host != "" && s.cfg.Username != "" && s.cfg.Password != ""
}

func (s *EmailAlertsSource) Produce(ctx context.Context, limit int) ([]models.CompanyCandidate, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var c *client.Client
	var err error
	if s.cfg.UseTLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, models.Errorf(models.ErrTransport, "connect to IMAP server %s: %v", addr, err)
	}
	defer c.Logout()

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return nil, models.Errorf(models.ErrTransport, "IMAP login failed: %v", err)
	}

	mbox, err := c.Select("INBOX", false)
	if err != nil {
		return nil, models.Errorf(models.ErrTransport, "select INBOX: %v", err)
	}
	if mbox.Messages == 0 {
		s.logger.Debug().Msg("No messages in INBOX")
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, models.Errorf(models.ErrTransport, "search unseen messages: %v", err)
	}
	if len(seqNums) == 0 {
		s.logger.Debug().Msg("No unseen messages")
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, len(seqNums))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, section.FetchItem()}, messages)
	}()

	filter := strings.ToLower(s.cfg.SubjectFilter)
	consumed := new(imap.SeqSet)
	consumedCount := 0
	var out []models.CompanyCandidate

	for msg := range messages {
		if msg == nil {
			continue
		}

		subject := ""
		if msg.Envelope != nil {
			subject = msg.Envelope.Subject
		}
		if filter != "" && !strings.Contains(strings.ToLower(subject), filter) {
			continue
		}

		body, err := alertBody(msg, section)
		if err != nil {
			s.logger.Warn().Err(err).Int64("seq", int64(msg.SeqNum)).Msg("Failed to parse alert body")
			continue
		}

		out = append(out, parseAlertCandidates(subject, body)...)
		consumed.AddNum(msg.SeqNum)
		consumedCount++
	}

	if err := <-done; err != nil {
		return nil, models.Errorf(models.ErrTransport, "fetch messages: %v", err)
	}

	if consumedCount > 0 {
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := c.Store(consumed, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to mark alerts as read")
		}
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	s.logger.Info().Int("messages", consumedCount).Int("candidates", len(out)).Msg("Processed job alert emails")
	return out, nil
}

// alertBody extracts the readable body of an alert. Plain text and HTML
// parts are both kept since board links usually live in the HTML.
func alertBody(msg *imap.Message, section *imap.BodySectionName) (string, error) {
	r := msg.GetBody(section)
	if r == nil {
		return "", fmt.Errorf("no body section")
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("create mail reader: %w", err)
	}

	var body strings.Builder
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read next part: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if strings.HasPrefix(contentType, "text/plain") || strings.HasPrefix(contentType, "text/html") {
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return "", fmt.Errorf("read body part: %w", err)
			}
			body.Write(b)
			body.WriteByte('\n')
		}
	}

	return strings.TrimSpace(body.String()), nil
}

// parseAlertCandidates extracts company leads from one alert message:
// hosted-board links first, then careers links on company sites, then
// the subject line when the body gave nothing
func parseAlertCandidates(subject, body string) []models.CompanyCandidate {
	seen := make(map[string]bool)
	var out []models.CompanyCandidate

	for _, vendor := range alertBoardPatterns {
		for _, m := range vendor.pattern.FindAllStringSubmatch(body, -1) {
			id := strings.ToLower(m[1])
			if reservedSlugs[id] {
				continue
			}
			key := string(vendor.ats) + "/" + id
			if seen[key] {
				continue
			}
			seen[key] = true

			out = append(out, models.CompanyCandidate{
				Name:          titleizeIdentifier(id),
				CareersURL:    strings.TrimRight(m[0], ".,;"),
				ATSType:       vendor.ats,
				ATSIdentifier: id,
				Source:        models.SourceEmailAlerts,
			})
		}
	}

	for _, link := range alertLinkPattern.FindAllString(body, -1) {
		link = strings.TrimRight(link, ".,;")
		domain := normalizeDomain(link)
		if domain == "" || isATSHost(domain) {
			continue
		}
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		path := strings.ToLower(u.Path)
		if !strings.Contains(path, "career") && !strings.Contains(path, "job") {
			continue
		}
		key := "site/" + domain
		if seen[key] {
			continue
		}
		seen[key] = true

		out = append(out, models.CompanyCandidate{
			Name:       titleizeIdentifier(strings.SplitN(domain, ".", 2)[0]),
			Domain:     domain,
			CareersURL: link,
			Source:     models.SourceEmailAlerts,
		})
	}

	if len(out) == 0 {
		if name := companyNameFromSubject(subject); name != "" {
			out = append(out, models.CompanyCandidate{
				Name:   name,
				Source: models.SourceEmailAlerts,
			})
		}
	}

	return out
}

func companyNameFromSubject(subject string) string {
	for _, pattern := range subjectNamePatterns {
		m := pattern.FindStringSubmatch(subject)
		if m == nil {
			continue
		}
		name := m[1]
		// "Acme - 3 new roles" style subjects carry the role list after
		// a spaced hyphen
		if i := strings.Index(name, " - "); i >= 0 {
			name = name[:i]
		}
		name = strings.Trim(strings.TrimSpace(name), ".-")
		if name != "" && len(name) <= 60 {
			return name
		}
	}
	return ""
}
