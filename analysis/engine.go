package analysis

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/worldtree/genetics-worker/model/genetics"
)

// Config bounds the inputs the engine will accept.
type Config struct {
	// MinRecords is the minimum number of retained records per dataset.
	MinRecords int
	// MinOverlap is the minimum number of shared rsIDs between the datasets.
	MinOverlap int
}

func DefaultConfig() Config {
	return Config{
		MinRecords: 100,
		MinOverlap: 50,
	}
}

// Engine computes pairwise relatedness from two raw genotype dumps. The
// output is deterministic for a given pair of inputs. Engines are safe for
// concurrent use.
type Engine struct {
	log zerolog.Logger
	cfg Config
}

func NewEngine(log zerolog.Logger, cfg Config) *Engine {
	return &Engine{
		log: log.With().Str("component", "analysis_engine").Logger(),
		cfg: cfg,
	}
}

// Analyze parses both datasets, intersects them by rsID and produces the
// full relationship result.
//
// Expected error returns:
//   - genetics.MalformedInputError if a dataset has no parseable records
//   - genetics.InsufficientDataError if a dataset retains fewer than
//     MinRecords records
//   - genetics.InsufficientOverlapError if the datasets share fewer than
//     MinOverlap rsIDs
//
// All of these are terminal: retrying with the same inputs cannot succeed.
func (e *Engine) Analyze(user1Raw string, user2Raw string) (*genetics.Result, error) {
	ds1 := ParseDataset(user1Raw)
	ds2 := ParseDataset(user2Raw)

	if ds1.Len() == 0 {
		return nil, genetics.NewMalformedInputError("no parseable records for user1")
	}
	if ds2.Len() == 0 {
		return nil, genetics.NewMalformedInputError("no parseable records for user2")
	}
	if ds1.Len() < e.cfg.MinRecords {
		return nil, genetics.NewInsufficientDataError(ds1.Len(), e.cfg.MinRecords)
	}
	if ds2.Len() < e.cfg.MinRecords {
		return nil, genetics.NewInsufficientDataError(ds2.Len(), e.cfg.MinRecords)
	}

	pairs := intersect(ds1, ds2)
	if len(pairs) < e.cfg.MinOverlap {
		return nil, genetics.NewInsufficientOverlapError(len(pairs))
	}

	ibs := countIBS(pairs)
	ibs2Pct := 100 * float64(ibs.IBS2) / float64(ibs.TotalSNPs)
	distance := pcaDistance(pairs)
	relationship, confidence := classify(ibs.IBSScore, ibs2Pct)

	e.log.Debug().
		Int("common_snps", len(pairs)).
		Int("skipped_genotypes", ds1.SkippedGenotypes()+ds2.SkippedGenotypes()).
		Float64("ibs_score", ibs.IBSScore).
		Str("relationship", relationship).
		Msg("analysis complete")

	return &genetics.Result{
		Status:          "success",
		NCommonSNPs:     len(pairs),
		IBS:             ibs,
		IBS2Percentage:  ibs2Pct,
		Relationship:    relationship,
		Confidence:      confidence,
		PCADistance:     distance,
		Recommendations: recommendations(relationship, confidence),
	}, nil
}

// intersect pairs up the genotypes for every rsID present in both datasets,
// in sorted rsID order so downstream arithmetic is order-stable.
func intersect(ds1, ds2 *Dataset) []genotypePair {
	rsids := make([]string, 0, ds1.Len())
	for rsid := range ds1.snps {
		if _, ok := ds2.snps[rsid]; ok {
			rsids = append(rsids, rsid)
		}
	}
	sort.Strings(rsids)

	pairs := make([]genotypePair, 0, len(rsids))
	for _, rsid := range rsids {
		pairs = append(pairs, genotypePair{
			rsid: rsid,
			g1:   ds1.snps[rsid].Genotype,
			g2:   ds2.snps[rsid].Genotype,
		})
	}
	return pairs
}
