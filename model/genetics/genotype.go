package genetics

// Genotype is the unordered pair of alleles at a SNP for one individual,
// stored in canonical form: two upper-case bases over {A,C,G,T}, sorted
// lexicographically. The zero value is not a valid genotype.
type Genotype [2]byte

// ParseGenotype canonicalizes a raw 2-letter allele code. Case is ignored
// and the pair is sorted, so "ta" and "AT" yield the same Genotype. Returns
// false for anything that is not exactly two bases over ACGT (no-calls such
// as "--" or "NN" included).
func ParseGenotype(raw string) (Genotype, bool) {
	if len(raw) != 2 {
		return Genotype{}, false
	}
	a, ok1 := normalizeBase(raw[0])
	b, ok2 := normalizeBase(raw[1])
	if !ok1 || !ok2 {
		return Genotype{}, false
	}
	if a > b {
		a, b = b, a
	}
	return Genotype{a, b}, true
}

func normalizeBase(c byte) (byte, bool) {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	switch c {
	case 'A', 'C', 'G', 'T':
		return c, true
	}
	return 0, false
}

func (g Genotype) String() string {
	return string(g[:])
}

// Heterozygous reports whether the two alleles differ.
func (g Genotype) Heterozygous() bool {
	return g[0] != g[1]
}

// Contains reports whether the genotype carries the given allele.
func (g Genotype) Contains(allele byte) bool {
	return g[0] == allele || g[1] == allele
}

// SharesAllele reports whether the two genotypes have at least one allele in
// common. For canonical pairs that are not equal, this is exactly the IBS=1
// condition.
func (g Genotype) SharesAllele(other Genotype) bool {
	return g[0] == other[0] || g[0] == other[1] || g[1] == other[0] || g[1] == other[1]
}
