package analysis

import (
	"math"

	"github.com/worldtree/genetics-worker/model/genetics"
)

// pcaDistance computes the lightweight PCA surrogate: each user's common-set
// genotypes are encoded as {homozygous-ref: 0, heterozygous: 1,
// homozygous-alt: 2} against a per-SNP reference allele, the two vectors are
// stacked as rows, columns are centered, and the Euclidean distance between
// the centered rows is reported. With two samples this equals a projection
// onto the leading principal axes, which is why the name survives from the
// upstream pipeline.
func pcaDistance(pairs []genotypePair) float64 {
	var sumSq float64
	for _, p := range pairs {
		ref := referenceAllele(p.g1, p.g2)
		v1 := encodeDosage(p.g1, ref)
		v2 := encodeDosage(p.g2, ref)
		mean := (v1 + v2) / 2
		c1 := v1 - mean
		c2 := v2 - mean
		d := c1 - c2
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}

// referenceAllele picks the lexicographically smallest allele observed at
// this SNP across the two users.
func referenceAllele(g1, g2 genetics.Genotype) byte {
	ref := g1[0]
	for _, a := range [...]byte{g1[1], g2[0], g2[1]} {
		if a < ref {
			ref = a
		}
	}
	return ref
}

func encodeDosage(g genetics.Genotype, ref byte) float64 {
	if g.Heterozygous() {
		return 1
	}
	if g[0] == ref {
		return 0
	}
	return 2
}
