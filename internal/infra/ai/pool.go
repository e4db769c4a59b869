package ai

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"graph-ingestion/internal/domain"
	"graph-ingestion/internal/domain/model"
)

// scanFactor bounds the round-robin scan in Next so a fully cooling-down
// pool fails fast instead of spinning.
const scanFactor = 5

type candidate struct {
	cred model.Credential
	desc model.ModelDescriptor
}

// Pool rotates (credential, model) pairs per task category, skipping
// credentials that are cooling down after use. Rotation order is the
// credential-major cross product of the catalog, so behavior is
// deterministic and reproducible in tests.
type Pool struct {
	mu         sync.Mutex
	creds      []model.Credential
	candidates map[model.TaskCategory][]candidate
	best       map[model.TaskCategory][]candidate
	cursor     map[model.TaskCategory]int
	bestCursor map[model.TaskCategory]int
	cooldowns  map[model.Credential]time.Time
	cooldown   time.Duration
	now        func() time.Time
	log        *zerolog.Logger
}

func NewPool(cat *Catalog, cooldown time.Duration, logger *zerolog.Logger) *Pool {
	p := &Pool{
		creds:      cat.Credentials,
		candidates: make(map[model.TaskCategory][]candidate, len(cat.Categories)),
		best:       make(map[model.TaskCategory][]candidate, len(cat.Categories)),
		cursor:     make(map[model.TaskCategory]int, len(cat.Categories)),
		bestCursor: make(map[model.TaskCategory]int, len(cat.Categories)),
		cooldowns:  make(map[model.Credential]time.Time),
		cooldown:   cooldown,
		now:        time.Now,
		log:        logger,
	}
	for tc, descs := range cat.Categories {
		pairs := make([]candidate, 0, len(cat.Credentials)*len(descs))
		for _, c := range cat.Credentials {
			for _, d := range descs {
				pairs = append(pairs, candidate{cred: c, desc: d})
			}
		}
		p.candidates[tc] = pairs

		// When a retry forces the best model we rotate over credentials only.
		bestDesc := descs[len(descs)-1]
		bestPairs := make([]candidate, 0, len(cat.Credentials))
		for _, c := range cat.Credentials {
			bestPairs = append(bestPairs, candidate{cred: c, desc: bestDesc})
		}
		p.best[tc] = bestPairs
	}
	return p
}

// Next returns the next off-cooldown (credential, model) pair for the
// category. With forceBest the candidate list shrinks to the single
// highest-tier model. The scan is bounded at len(credentials)*scanFactor
// steps; past that every candidate is cooling down and
// domain.ErrAllCredentialsCoolingDown is returned.
func (p *Pool) Next(cat model.TaskCategory, forceBest bool) (model.Credential, model.ModelDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pairs := p.candidates[cat]
	cursor := p.cursor
	if forceBest {
		pairs = p.best[cat]
		cursor = p.bestCursor
	}
	if len(pairs) == 0 {
		return "", model.ModelDescriptor{}, fmt.Errorf("%w: no model mapping for category %q", domain.ErrInvalidArgument, cat)
	}

	maxChecks := len(p.creds) * scanFactor
	now := p.now()
	for i := 0; i < maxChecks; i++ {
		c := pairs[cursor[cat]%len(pairs)]
		cursor[cat] = (cursor[cat] + 1) % len(pairs)
		if now.Before(p.cooldowns[c.cred]) {
			continue
		}
		return c.cred, c.desc, nil
	}
	return "", model.ModelDescriptor{}, domain.ErrAllCredentialsCoolingDown
}

// MarkUsed puts the credential on cooldown for the configured duration.
// Called only after a successful call; failed attempts leave the
// credential available for the next rotation.
func (p *Pool) MarkUsed(cred model.Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()
	until := p.now().Add(p.cooldown)
	p.cooldowns[cred] = until
	p.log.Debug().Str("credential", "..."+cred.Tail()).Time("until", until).Msg("credential cooldown set")
}
