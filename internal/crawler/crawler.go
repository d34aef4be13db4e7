// Package crawler scrapes the home page of every known referring domain and
// records its title, main text, language and outbound links.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alvmarrod/everest/internal/config"
	"github.com/alvmarrod/everest/internal/metrics"
	"github.com/alvmarrod/everest/internal/storage"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	ctxDomain = "domain"
	ctxPage   = "page"
)

var errNoDocument = errors.New("response has no html document")

// Store is the persistence the scraper reads targets from and writes results to
type Store interface {
	ListReferringDomains(ctx context.Context, onlyUnscraped bool) ([]string, error)
	SaveScrapeResult(ctx context.Context, r storage.ScrapeResult) error
}

// pageState collects the callbacks of one request
type pageState struct {
	page      Page
	extracted bool
}

// Scraper fetches domains with a pool of workers sharing one collector
type Scraper struct {
	cfg       *config.Config
	store     Store
	tracker   *metrics.Tracker
	collector *colly.Collector
	limiter   *rate.Limiter
	urlFor    func(domain string) string
	known     map[string]struct{}
}

// NewScraper creates a scraper. tracker may be nil.
func NewScraper(cfg *config.Config, store Store, tracker *metrics.Tracker) *Scraper {
	s := &Scraper{
		cfg:     cfg,
		store:   store,
		tracker: tracker,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.ConcurrentWorkers),
		urlFor: func(domain string) string {
			return "https://" + domain
		},
	}

	s.setupColly()
	return s
}

// setupColly configures the Colly collector with callbacks
func (s *Scraper) setupColly() {
	s.collector = colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	s.collector.SetRequestTimeout(s.cfg.RequestTimeout())

	// Limit parallelism
	s.collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: s.cfg.ConcurrentWorkers,
	})

	s.collector.OnHTML("html", func(e *colly.HTMLElement) {
		state, ok := e.Request.Ctx.GetAny(ctxPage).(*pageState)
		if !ok || state.extracted {
			return
		}
		domain := e.Request.Ctx.Get(ctxDomain)
		state.page = ExtractPage(e.DOM, domain, s.cfg.MaxTextBytes)
		state.extracted = true
	})

	s.collector.OnResponse(func(r *colly.Response) {
		domain := r.Ctx.Get(ctxDomain)
		if host, err := ExtractDomain(r.Request.URL.String()); err == nil && host != "" && host != domain {
			logrus.Debugf("Fetched %s via %s (status=%d)", domain, host, r.StatusCode)
			return
		}
		logrus.Debugf("Fetched %s (status=%d)", domain, r.StatusCode)
	})

	s.collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Request != nil {
			logrus.Warnf("Fetch failed for %s: %v (status: %d)", r.Request.URL, err, r.StatusCode)
			return
		}
		logrus.Warnf("Fetch failed: %v", err)
	})
}

// Run scrapes every referring domain, or only those never attempted when
// onlyUnscraped is set. It returns the number of domains attempted.
func (s *Scraper) Run(ctx context.Context, onlyUnscraped bool) (int, error) {
	all, err := s.store.ListReferringDomains(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("failed to list referring domains: %w", err)
	}
	s.known = make(map[string]struct{}, len(all))
	for _, d := range all {
		s.known[d] = struct{}{}
	}

	targets := all
	if onlyUnscraped {
		if targets, err = s.store.ListReferringDomains(ctx, true); err != nil {
			return 0, fmt.Errorf("failed to list unscraped domains: %w", err)
		}
	}
	if len(targets) == 0 {
		logrus.Info("Nothing to scrape")
		return 0, nil
	}

	queue := NewQueue()
	for _, d := range targets {
		queue.Push(d)
	}
	queue.Stop()

	logrus.Infof("Starting %d scraper workers for %d domains", s.cfg.ConcurrentWorkers, queue.Size())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		attempted int
	)
	for i := 0; i < s.cfg.ConcurrentWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			n := s.worker(ctx, id, queue)
			mu.Lock()
			attempted += n
			mu.Unlock()
		}(i + 1)
	}
	wg.Wait()

	return attempted, ctx.Err()
}

// worker drains the queue and returns how many domains it attempted
func (s *Scraper) worker(ctx context.Context, id int, queue *Queue) int {
	attempted := 0
	for {
		if ctx.Err() != nil {
			logrus.Infof("Worker %d received stop signal", id)
			return attempted
		}

		domain, ok := queue.Pop()
		if !ok {
			return attempted
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return attempted
		}

		result := s.Scrape(domain)
		attempted++
		if err := s.store.SaveScrapeResult(ctx, result); err != nil {
			logrus.Warnf("Worker %d: failed to save %s: %v", id, domain, err)
		}
	}
}

// Scrape fetches one domain and derives its links against the known domains
func (s *Scraper) Scrape(domain string) storage.ScrapeResult {
	result := storage.ScrapeResult{DomainName: domain, AttemptedAt: time.Now().UTC()}

	state := &pageState{}
	cctx := colly.NewContext()
	cctx.Put(ctxDomain, domain)
	cctx.Put(ctxPage, state)

	start := time.Now()
	err := s.collector.Request(http.MethodGet, s.urlFor(domain), nil, cctx, nil)
	if s.tracker != nil {
		s.tracker.RecordFetchTime(time.Since(start))
	}
	if err == nil && !state.extracted {
		err = errNoDocument
	}
	if err != nil {
		result.Err = err
		if s.tracker != nil {
			s.tracker.IncrementScrapesFailed()
		}
		return result
	}

	page := state.page
	result.Title = page.Title
	result.Text = page.Text
	result.Language = DetectLanguage(page.Text)
	result.Links = page.Links
	result.MainDomainLinks, result.RegisteredDomainLinks = DeriveLinks(page.Links, s.known)

	if s.tracker != nil {
		s.tracker.IncrementDomainsScraped()
	}
	logrus.Infof("Scraped %s (lang=%s, %d links)", domain, result.Language, len(result.Links))
	return result
}
