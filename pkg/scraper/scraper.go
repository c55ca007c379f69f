// Package scraper runs the configured searches: it resolves their tags, pages
// through the post index, classifies every post and downloads the new ones.
//
// A run starts by finishing any partial downloads left under the download
// root, then resolves the blacklist once and works through the searches in
// the order they appear in the configuration. A failing search is reported
// and the next one runs.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"e621dl/internal/downloader"
	"e621dl/pkg/config"
	"e621dl/pkg/filter"
	"e621dl/pkg/logger"
	"e621dl/pkg/search"
	"e621dl/pkg/storage"
	"e621dl/pkg/tags"
	"e621dl/pkg/ui"
)

// API is everything the scraper needs from the e621 client
type API interface {
	tags.Lookup
	search.PostSearcher
	downloader.Fetcher
	downloader.PostLookup
}

// Scraper orchestrates one download run
type Scraper struct {
	api        API
	config     *config.Config
	layout     *storage.Layout
	resolver   *tags.Resolver
	classifier *filter.Classifier
	downloader *downloader.Downloader
	console    *ui.Console
	logger     logger.Logger
	now        func() time.Time
}

// New creates a scraper for cfg talking to api
func New(api API, cfg *config.Config, console *ui.Console, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	if console == nil {
		console = ui.NewConsole(false)
	}
	layout := storage.NewLayout(cfg.Output.BaseDirectory, cfg.Toggles.IncludeMD5)

	return &Scraper{
		api:        api,
		config:     cfg,
		layout:     layout,
		resolver:   tags.NewResolver(api, log),
		classifier: filter.NewClassifier(layout),
		downloader: downloader.New(api, log).WithIdleTimeout(cfg.Network.Timeout),
		console:    console,
		logger:     log,
		now:        time.Now,
	}
}

// Run recovers partial downloads and runs every configured search. It
// returns the tallies of the searches that ran and the joined errors of those
// that failed. Cancellation stops the run at once.
func (s *Scraper) Run(ctx context.Context) ([]*ui.Tally, error) {
	if err := s.recover(ctx); err != nil {
		return nil, err
	}

	s.console.Info("Resolving blacklist.")
	resolved, err := s.resolver.ResolveAll(ctx, s.config.Blacklist)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blacklist: %w", err)
	}
	s.reportTags(s.config.Blacklist, resolved)
	blacklist := search.DropUnresolved(resolved)

	var (
		tallies []*ui.Tally
		errs    []error
	)
	for _, sc := range s.config.Searches {
		opts := s.config.Options(sc)
		log := s.logger.WithField("search", opts.Name)

		s.console.Info("Resolving tags of %s.", opts.Name)
		spec, err := search.NewSpec(ctx, opts, blacklist, s.resolver, s.now())
		if err == nil {
			s.reportTags(opts.Tags, spec.Tags)
		}

		var tally *ui.Tally
		if err == nil {
			tally, err = s.RunSearch(ctx, spec)
		}
		if tally != nil {
			tallies = append(tallies, tally)
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return tallies, ctxErr
			}
			log.WithError(err).Error("search failed")
			s.console.Error("Search %s failed: %v", opts.Name, err)
			errs = append(errs, fmt.Errorf("search %s: %w", opts.Name, err))
		}
	}

	return tallies, errors.Join(errs...)
}

// RunSearch pages through one search, printing a line per post and
// downloading every accepted post. The tally is printed and returned even
// when the search stops early.
func (s *Scraper) RunSearch(ctx context.Context, spec *search.Spec) (*ui.Tally, error) {
	tally := ui.NewTally(spec.Label)
	defer s.console.Tally(tally)

	if err := s.layout.EnsureDir(spec.Directory); err != nil {
		return tally, err
	}

	log := s.logger.WithFields(map[string]interface{}{
		"search": spec.Label,
		"query":  spec.Query(),
	})
	log.Info("search started")

	paginator := search.NewPaginator(s.api, spec)
	for post, err := range paginator.All(ctx) {
		if err != nil {
			return tally, err
		}

		decision, err := s.classifier.Classify(post, spec)
		if err != nil {
			return tally, err
		}
		tally.Add(decision)
		s.console.Decision(post.ID, decision)

		if decision != filter.Accepted {
			continue
		}
		if post.FileURL == "" {
			s.console.Warning("Post %d has no file url.", post.ID)
			tally.Failed++
			continue
		}

		result, err := s.downloader.Download(ctx, post.FileURL, s.layout.PathFor(spec.Directory, post))
		if err != nil {
			return tally, err
		}
		s.record(tally, post.ID, result)
	}

	log.InfoWithFields("search finished", map[string]interface{}{
		"posts":      tally.Total(),
		"downloaded": tally.Downloaded,
		"failed":     tally.Failed,
	})
	return tally, nil
}

func (s *Scraper) record(tally *ui.Tally, postID int64, result downloader.Result) {
	if !result.OK() {
		tally.Failed++
		if result.Status != 0 {
			s.console.Error("The download url %s is not available. Error code: %d.", result.URL, result.Status)
		} else {
			s.console.Error("Download of %s failed: %v", result.URL, result.Err)
		}
		return
	}

	tally.Downloaded++
	tally.Bytes += result.Written
	if result.Resumed() {
		tally.Resumed++
	}
	s.console.Downloaded(postID, result.Size, result.Resumed())
}

func (s *Scraper) recover(ctx context.Context) error {
	results, err := s.downloader.RecoverPartials(ctx, s.config.Output.BaseDirectory, s.api)
	if err != nil {
		return fmt.Errorf("failed to recover partial downloads: %w", err)
	}
	for _, r := range results {
		if r.OK() {
			s.console.Success("Partial download %s finished.", r.Path)
		} else {
			s.console.Error("Partial download %s could not be finished: %v", r.Path, r.Err)
		}
	}
	return nil
}

// reportTags prints one line per configured tag saying how it resolved
func (s *Scraper) reportTags(configured, resolved []string) {
	for i, token := range configured {
		if i >= len(resolved) {
			return
		}
		switch r := resolved[i]; {
		case r == "":
			s.console.Warning("The tag %s is spelled incorrectly or does not exist.", token)
		case r != token:
			s.console.Success("The tag %s was changed to %s.", token, r)
		default:
			s.console.Success("The tag %s is valid.", token)
		}
	}
}
