// Package enrich resolves a lead to its member profile and reads the profile
// page and its detail subpages into a structured record.
package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
)

// Operation is the coordinator label for an enrichment.
const Operation = "enrich_profile"

// Default per-section caps.
const (
	DefaultMaxPosts = 5
	maxExperience   = 12
	maxEducation    = 10
	maxSkills       = 20
	maxOtherItems   = 10
)

// Error texts recorded on a Profile.
const (
	ErrUnresolved      = "Unable to resolve profile URL"
	ErrProfileFetch    = "Failed to fetch profile page"
	ErrExperienceFetch = "Failed to fetch experience details"
	ErrEducationFetch  = "Failed to fetch education details"
	ErrActivityFetch   = "Failed to fetch recent activity"
)

// Profile is the enrichment result for one lead. Errors lists the steps that
// failed; later steps still run when an optional one fails.
type Profile struct {
	LeadID         int64    `json:"lead_id,omitempty"`
	ProfileURL     string   `json:"profile_url,omitempty"`
	Summary        Summary  `json:"summary"`
	About          string   `json:"about,omitempty"`
	Experience     []string `json:"experience_items"`
	Education      []string `json:"education_items"`
	Certifications []string `json:"certifications_items"`
	Volunteering   []string `json:"volunteering_items"`
	Skills         []string `json:"skills_items"`
	Honors         []string `json:"honors_items"`
	Languages      []string `json:"languages_items"`
	FeaturedPosts  []Post   `json:"featured_posts"`
	ActivityPosts  []Post   `json:"activity_posts"`
	RecentPosts    []Post   `json:"recent_posts"`
	Errors         []string `json:"errors"`
}

// Enriched reports whether the profile page itself was read.
func (p Profile) Enriched() bool {
	if p.ProfileURL == "" {
		return false
	}
	for _, e := range p.Errors {
		if e == ErrProfileFetch {
			return false
		}
	}
	return true
}

// Option customizes an Enricher.
type Option func(*Enricher)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger.Named("enrich")
		}
	}
}

// WithHeadless picks the browser mode for every fetch.
func WithHeadless(headless bool) Option {
	return func(e *Enricher) { e.headless = headless }
}

// WithDetails toggles the experience, education and activity subpages.
func WithDetails(on bool) Option {
	return func(e *Enricher) { e.details = on }
}

// WithMaxPosts caps each post list.
func WithMaxPosts(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.maxPosts = n
		}
	}
}

// Enricher reads profiles through the shared browser profile.
type Enricher struct {
	fetcher   crawler.Fetcher
	extractor crawler.Extractor
	locker    crawler.Locker
	blocks    *crawler.BlockDetector
	headless  bool
	details   bool
	maxPosts  int
	logger    *zap.Logger
}

// New wires an Enricher.
func New(fetcher crawler.Fetcher, extractor crawler.Extractor, locker crawler.Locker, opts ...Option) (*Enricher, error) {
	if fetcher == nil || extractor == nil || locker == nil {
		return nil, errors.New("enrich: fetcher, extractor and locker are required")
	}
	e := &Enricher{
		fetcher:   fetcher,
		extractor: extractor,
		locker:    locker,
		blocks:    crawler.NewBlockDetector(),
		headless:  true,
		details:   true,
		maxPosts:  DefaultMaxPosts,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enrich resolves t and reads its profile while holding the browser profile.
// Page-level failures are recorded on the Profile; the error is only set when
// the browser profile could not be acquired.
func (e *Enricher) Enrich(ctx context.Context, t Target) (Profile, error) {
	p := Profile{LeadID: t.LeadID, Errors: []string{}}
	err := e.locker.Do(ctx, Operation, func(ctx context.Context) error {
		e.read(ctx, t, &p)
		return nil
	})
	if err != nil {
		return p, err
	}
	e.logger.Info("profile enriched",
		zap.Int64("lead_id", t.LeadID),
		zap.String("profile", p.ProfileURL),
		zap.Strings("errors", p.Errors),
	)
	return p, nil
}

func (e *Enricher) read(ctx context.Context, t Target, p *Profile) {
	p.ProfileURL = e.resolve(ctx, t)
	if p.ProfileURL == "" {
		p.Errors = append(p.Errors, ErrUnresolved)
		return
	}

	doc, err := e.fetch(ctx, p.ProfileURL, crawler.PrepareExpand)
	if err != nil {
		e.logger.Warn("profile fetch failed", zap.String("profile", p.ProfileURL), zap.Error(err))
		p.Errors = append(p.Errors, ErrProfileFetch)
		return
	}
	p.Summary = ParseSummary(doc)
	p.About = ParseAbout(doc)
	p.Experience = SectionItems(doc, SectionExperience, maxExperience)
	p.Education = SectionItems(doc, SectionEducation, maxEducation)
	p.Certifications = SectionItems(doc, SectionCertifications, maxExperience)
	p.Volunteering = SectionItems(doc, SectionVolunteering, maxOtherItems)
	p.Skills = SectionItems(doc, SectionSkills, maxSkills)
	p.Honors = SectionItems(doc, SectionHonors, maxOtherItems)
	p.Languages = SectionItems(doc, SectionLanguages, maxOtherItems)
	p.FeaturedPosts = FeaturedPosts(doc, e.maxPosts)
	p.ActivityPosts = ActivityPosts(doc, e.maxPosts)

	if !e.details {
		return
	}
	base := strings.TrimRight(p.ProfileURL, "/")
	if doc, err := e.fetch(ctx, base+"/details/experience/", crawler.PrepareScroll); err != nil {
		p.Errors = append(p.Errors, ErrExperienceFetch)
	} else if rows := DetailItems(doc, SectionExperience, maxExperience); len(rows) > 0 {
		p.Experience = rows
	}
	if doc, err := e.fetch(ctx, base+"/details/education/", crawler.PrepareScroll); err != nil {
		p.Errors = append(p.Errors, ErrEducationFetch)
	} else if rows := DetailItems(doc, SectionEducation, maxEducation); len(rows) > 0 {
		p.Education = rows
	}
	if doc, err := e.fetch(ctx, base+"/recent-activity/all/", crawler.PrepareScroll); err != nil {
		p.Errors = append(p.Errors, ErrActivityFetch)
	} else {
		p.RecentPosts = RecentPosts(doc, e.maxPosts)
	}
}

// fetchPage loads url and rejects pages that look blocked.
func (e *Enricher) fetchPage(ctx context.Context, url string, prepare crawler.Prepare) (crawler.Page, error) {
	page, err := e.fetcher.Fetch(ctx, crawler.FetchRequest{URL: url, Headless: e.headless, Prepare: prepare})
	if err != nil {
		return crawler.Page{}, err
	}
	if reason, blocked := e.blocks.Detect(page); blocked {
		return crawler.Page{}, fmt.Errorf("%s: %w (%s)", url, crawler.ErrBlocked, reason)
	}
	return page, nil
}

func (e *Enricher) fetch(ctx context.Context, url string, prepare crawler.Prepare) (*goquery.Document, error) {
	page, err := e.fetchPage(ctx, url, prepare)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

func attrHref(_ int, s *goquery.Selection) string {
	return s.AttrOr("href", "")
}
