package analysis

import (
	"github.com/worldtree/genetics-worker/model/genetics"
)

// genotypePair is one common SNP with both users' canonical genotypes.
type genotypePair struct {
	rsid string
	g1   genetics.Genotype
	g2   genetics.Genotype
}

// countIBS aggregates identity-by-state counts over the common SNP set.
// Per SNP: IBS2 when the canonical genotypes are equal, IBS1 when they share
// at least one allele, IBS0 otherwise. The score (2*IBS2 + IBS1) / (2*total)
// is the fraction of allele positions shared, in [0,1].
func countIBS(pairs []genotypePair) genetics.IBSAnalysis {
	var ibs genetics.IBSAnalysis
	for _, p := range pairs {
		switch {
		case p.g1 == p.g2:
			ibs.IBS2++
		case p.g1.SharesAllele(p.g2):
			ibs.IBS1++
		default:
			ibs.IBS0++
		}
	}
	ibs.TotalSNPs = len(pairs)
	if ibs.TotalSNPs > 0 {
		ibs.IBSScore = float64(2*ibs.IBS2+ibs.IBS1) / float64(2*ibs.TotalSNPs)
	}
	return ibs
}
