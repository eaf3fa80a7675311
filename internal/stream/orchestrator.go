// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stream

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-idx/aggregator/internal/breaker"
	"github.com/meridian-idx/aggregator/internal/concurrency"
	"github.com/meridian-idx/aggregator/internal/metrics"
	"github.com/meridian-idx/aggregator/internal/model"
	"github.com/meridian-idx/aggregator/internal/netutil"
	"github.com/meridian-idx/aggregator/internal/registry"
	"github.com/meridian-idx/aggregator/internal/resolver"
	"github.com/meridian-idx/aggregator/internal/scoring"
)

// PluginTimeout bounds one plugin invocation within a stream resolve,
// per spec §4.10 step 5's default.
const PluginTimeout = 15 * time.Second

// ResolveTargetCount is the default number of resolved streams the
// early-stop pass aims for, per spec §4.10 step 9.
const ResolveTargetCount = 15

// MaxProbeCount caps how many ranked candidates enter the resolve pass.
// The source spec names the knob without a numeric default; twice
// ResolveTargetCount gives the early-stop race room to lose some
// candidates to dead links without starving the target.
const MaxProbeCount = 2 * ResolveTargetCount

// Request identifies the content a Stremio client asked to stream.
type Request struct {
	ContentID string
	Kind      string // "movie" | "series"
	Season    int
	Episode   int
	Category  string
	Bucket    string
}

// ScoreSample is emitted after each plugin invocation for C6 to fold into
// its EWMA, mirroring the background prober's observation shape but fed
// from the request hot path instead of a scheduled probe.
type ScoreSample struct {
	Plugin     string
	Category   string
	Bucket     string
	Success    bool
	DurationMS float64
}

// Orchestrator implements spec §4.10's 11-step stream resolution
// pipeline, composing the title resolver, C3's budget, C4's breakers,
// C5's registry, C6's scoring store, and C8's resolver registry.
type Orchestrator struct {
	Titles    TitleResolver
	Registry  *registry.Registry
	Pool      *concurrency.Pool
	Breakers  *breaker.Registry
	Resolver  *resolver.Registry
	Scores    *scoring.Store
	Candidates []string // plugin names eligible for stream requests

	HosterBonuses          map[string]float64
	PluginTimeout          time.Duration
	ResolveTargetCount     int
	MaxProbeCount          int
	ScoringEnabled         bool
	ExplorationProbability float64

	// Samples receives one ScoreSample per plugin invocation; nil is a
	// valid "nobody is listening" value. Sends never block the pipeline.
	Samples chan<- ScoreSample

	// ProxyURLBuilder builds a late-resolving proxy URL for a stream that
	// still looks plausible but failed to resolve during this request, per
	// spec §4.10 step 10. A nil builder drops such streams instead.
	ProxyURLBuilder func(origin model.SearchResult) string
}

// NewOrchestrator builds an Orchestrator with spec-default tunables.
func NewOrchestrator(titles TitleResolver, reg *registry.Registry, pool *concurrency.Pool, breakers *breaker.Registry, res *resolver.Registry, scores *scoring.Store, candidates []string) *Orchestrator {
	return &Orchestrator{
		Titles:                 titles,
		Registry:               reg,
		Pool:                   pool,
		Breakers:               breakers,
		Resolver:               res,
		Scores:                 scores,
		Candidates:             candidates,
		PluginTimeout:          PluginTimeout,
		ResolveTargetCount:     ResolveTargetCount,
		MaxProbeCount:          MaxProbeCount,
		ExplorationProbability: ExplorationProbability,
	}
}

// Resolve runs the full spec §4.10 pipeline for req and returns the
// ranked, resolved (or proxy-fallback) streams.
func (o *Orchestrator) Resolve(ctx context.Context, req Request) ([]model.RankedStream, error) {
	title, err := o.Titles.Resolve(ctx, req.ContentID, req.Kind)
	if err != nil {
		return nil, err
	}

	groups := o.buildSearchPlan(title, req)

	results, err := o.dispatch(ctx, groups, req)
	if err != nil {
		return nil, err
	}

	matched := o.matchAndRank(title, results)
	deduped := dedupByHoster(matched)

	sort.Slice(deduped, func(i, j int) bool { return deduped[i].RankScore > deduped[j].RankScore })

	return o.earlyStopResolve(ctx, deduped)
}

// searchGroup is one language's candidate plugins and the query set to
// run against each of them.
type searchGroup struct {
	language string
	plugins  []string
	queries  []string
}

// buildSearchPlan implements spec §4.10 step 2: group candidate plugins
// by declared language, and for each group produce the title query plus
// a punctuation-stripped auxiliary variant.
func (o *Orchestrator) buildSearchPlan(title Title, req Request) []searchGroup {
	byLanguage := make(map[string][]string)
	for _, name := range o.Candidates {
		desc, ok := o.Registry.Descriptor(name)
		if !ok {
			continue
		}
		langs := desc.Languages
		if len(langs) == 0 {
			langs = []string{"unknown"}
		}
		for _, lang := range langs {
			byLanguage[lang] = append(byLanguage[lang], name)
		}
	}

	seed := fnv.New64a()
	seed.Write([]byte(title.Name + "\x00" + req.Category))

	groups := make([]searchGroup, 0, len(byLanguage))
	for lang, plugins := range byLanguage {
		rng := rand.New(rand.NewPCG(seed.Sum64(), 0))
		selected := SelectPlugins(context.Background(), o.Scores, plugins, req.Category, req.Bucket, o.ScoringEnabled, o.ExplorationProbability, rng)
		groups = append(groups, searchGroup{language: lang, plugins: selected, queries: buildQueries(title)})
	}
	return groups
}

func buildQueries(title Title) []string {
	queries := []string{title.Name}
	if stripped := nonWord.ReplaceAllString(title.Name, " "); strings.TrimSpace(stripped) != strings.TrimSpace(title.Name) {
		queries = append(queries, strings.Join(strings.Fields(stripped), " "))
	}
	return queries
}

// dispatch implements spec §4.10 steps 4-5: language groups run in
// parallel, plugins within a group run in parallel bounded by the
// request's C3 budget, and each plugin call is wrapped by its C4 breaker
// and an overall per-call timeout.
func (o *Orchestrator) dispatch(ctx context.Context, groups []searchGroup, req Request) ([]model.SearchResult, error) {
	preq, deregister := o.Pool.Register()
	defer deregister()

	var mu sync.Mutex
	var all []model.SearchResult

	g, gctx := errgroup.WithContext(ctx)
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			inner, innerCtx := errgroup.WithContext(gctx)
			for _, plugin := range grp.plugins {
				plugin := plugin
				for _, query := range grp.queries {
					query := query
					inner.Go(func() error {
						results := o.invokePlugin(innerCtx, preq, plugin, query, req)
						if len(results) == 0 {
							return nil
						}
						mu.Lock()
						all = append(all, results...)
						mu.Unlock()
						return nil
					})
				}
			}
			return inner.Wait()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// invokePlugin runs one plugin search under its fair-share budget slot
// and circuit breaker. Failures never abort the overall dispatch — a
// breaker trip or timeout simply yields zero results from that plugin.
func (o *Orchestrator) invokePlugin(ctx context.Context, preq *concurrency.Request, plugin, query string, req Request) []model.SearchResult {
	desc, ok := o.Registry.Descriptor(plugin)
	if !ok {
		return nil
	}

	class := concurrency.ClassFastHTTP
	if desc.Mode == registry.ModeHeadlessBrowser {
		class = concurrency.ClassHeadless
	}
	if err := preq.Acquire(ctx, class); err != nil {
		return nil
	}
	defer preq.Release(class)

	br := o.Breakers.Get(plugin)
	if allowed, _ := br.Allow(); !allowed {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout())
	defer cancel()

	p, err := o.Registry.Get(plugin)
	if err != nil {
		br.RecordFailure()
		return nil
	}

	start := time.Now()
	results, err := p.Search(callCtx, query, req.Category, req.Season, req.Episode)
	duration := time.Since(start)
	metrics.ObservePluginInvocation(plugin, err == nil, duration.Seconds())

	if err != nil {
		br.RecordFailure()
		o.emitSample(plugin, req, false, duration)
		return nil
	}
	br.RecordSuccess()
	o.emitSample(plugin, req, true, duration)

	for i := range results {
		results[i].PluginName = plugin
	}
	return results
}

func (o *Orchestrator) timeout() time.Duration {
	if o.PluginTimeout <= 0 {
		return PluginTimeout
	}
	return o.PluginTimeout
}

func (o *Orchestrator) emitSample(plugin string, req Request, success bool, d time.Duration) {
	if o.Samples == nil {
		return
	}
	sample := ScoreSample{Plugin: plugin, Category: req.Category, Bucket: req.Bucket, Success: success, DurationMS: float64(d.Milliseconds())}
	select {
	case o.Samples <- sample:
	default:
	}
}

// matchAndRank implements spec §4.10 steps 6-7: score each result's
// title match, drop misses, parse quality/language, and rank survivors.
func (o *Orchestrator) matchAndRank(title Title, results []model.SearchResult) []model.RankedStream {
	out := make([]model.RankedStream, 0, len(results))
	for _, r := range results {
		name := r.ReleaseName
		if name == "" {
			name = r.Title
		}
		if MatchScore(title, name) < MatchThreshold {
			continue
		}

		quality := ParseQuality(name)
		language := ParseLanguage(name)
		hoster := hosterName(r)
		bonus := HosterBonus(hoster, o.HosterBonuses)

		out = append(out, model.RankedStream{
			URL:        r.PrimaryURL,
			HosterName: hoster,
			Quality:    quality,
			Language:   language,
			PluginName: r.PluginName,
			RankScore:  Rank(language, quality, bonus),
			Origin:     r,
		})
	}
	return out
}

func hosterName(r model.SearchResult) string {
	for _, alt := range r.Alternatives {
		if alt.URL == r.PrimaryURL && alt.Hoster != "" {
			return alt.Hoster
		}
	}
	return netutil.RegistrableDomain(hostOf(r.PrimaryURL))
}

func hostOf(rawURL string) string {
	const schemeSep = "://"
	if idx := strings.Index(rawURL, schemeSep); idx >= 0 {
		rawURL = rawURL[idx+len(schemeSep):]
	}
	if idx := strings.IndexAny(rawURL, "/?#"); idx >= 0 {
		rawURL = rawURL[:idx]
	}
	return rawURL
}

// dedupByHoster implements spec §4.10 step 8: keep only the
// highest-ranked stream per hoster name. Input order need not be
// rank-sorted; comparisons happen pairwise against the running best.
func dedupByHoster(streams []model.RankedStream) []model.RankedStream {
	best := make(map[string]model.RankedStream, len(streams))
	order := make([]string, 0, len(streams))
	for _, s := range streams {
		existing, ok := best[s.HosterName]
		if !ok {
			order = append(order, s.HosterName)
			best[s.HosterName] = s
			continue
		}
		if s.RankScore > existing.RankScore {
			best[s.HosterName] = s
		}
	}
	out := make([]model.RankedStream, 0, len(order))
	for _, hoster := range order {
		out = append(out, best[hoster])
	}
	return out
}

// earlyStopResolve implements spec §4.10 step 9: resolve the top
// MaxProbeCount candidates through C8 in parallel, bounded, stopping as
// soon as ResolveTargetCount have produced a direct video URL and
// cancelling the rest; then step 10 attaches playback headers or a
// server-side proxy fallback.
func (o *Orchestrator) earlyStopResolve(ctx context.Context, candidates []model.RankedStream) ([]model.RankedStream, error) {
	probeCount := o.MaxProbeCount
	if probeCount <= 0 {
		probeCount = MaxProbeCount
	}
	if probeCount > len(candidates) {
		probeCount = len(candidates)
	}
	target := o.ResolveTargetCount
	if target <= 0 {
		target = ResolveTargetCount
	}

	resolveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	resolved := make([]model.RankedStream, 0, target)
	dropped := make(map[int]bool)

	g, gctx := errgroup.WithContext(resolveCtx)
	sem := make(chan struct{}, probeCount)
	for i := 0; i < probeCount; i++ {
		i := i
		cand := candidates[i]
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			stream, err := o.resolveOne(gctx, cand)

			mu.Lock()
			defer mu.Unlock()
			if len(resolved) >= target {
				return nil
			}
			if err != nil || stream == nil {
				dropped[i] = true
				return nil
			}
			resolved = append(resolved, *stream)
			if len(resolved) >= target {
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := probeCount; i < len(candidates); i++ {
		dropped[i] = true
	}
	for i, cand := range candidates {
		if !dropped[i] {
			continue
		}
		if fallback := o.proxyFallback(cand); fallback != nil {
			resolved = append(resolved, *fallback)
		}
	}
	return resolved, nil
}

func (o *Orchestrator) resolveOne(ctx context.Context, cand model.RankedStream) (*model.RankedStream, error) {
	if o.Resolver == nil || !o.Resolver.Supported(cand.URL) {
		return nil, nil
	}
	result, err := o.Resolver.Resolve(ctx, cand.URL)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	out := cand
	out.DirectURL = result.VideoURL
	out.PlaybackHeaders = model.PlaybackHeaders(result.Headers)
	return &out, nil
}

// proxyFallback builds a server-side late-resolve proxy URL for a
// candidate that could not be resolved in time but still looks
// streamable, per spec §4.10 step 10. Without a ProxyURLBuilder the
// candidate is dropped, since a proxy URL is the only way to surface an
// unresolved stream to a Stremio client.
func (o *Orchestrator) proxyFallback(cand model.RankedStream) *model.RankedStream {
	if o.ProxyURLBuilder == nil {
		return nil
	}
	proxyURL := o.ProxyURLBuilder(cand.Origin)
	if proxyURL == "" {
		return nil
	}
	out := cand
	out.DirectURL = proxyURL
	return &out
}
