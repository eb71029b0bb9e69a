// Package analysis implements the pairwise SNP similarity engine: parsing of
// raw genotype records, identity-by-state counting, the surrogate PCA
// distance and relationship classification.
package analysis

import (
	"strconv"
	"strings"

	"github.com/worldtree/genetics-worker/model/genetics"
)

// Dataset is one user's parsed genotype records, keyed by rsID. Records with
// an unusable genotype or an unrecognizable field layout are counted, not
// retained.
type Dataset struct {
	snps             map[string]genetics.SNP
	skippedGenotypes int
	skippedRecords   int
}

// ParseDataset parses a whitespace-delimited multi-line genotype dump.
// A line is a record when it has at least four fields and does not start
// with '#'. Two field orderings exist in the wild:
//
//	rsid position chromosome genotype
//	rsid chromosome position genotype
//
// whichever of the middle fields is purely numeric is taken as the position;
// when both are numeric (chromosomes 1-22 are), position-second wins, which
// is the layout the upstream exporter produces. rsIDs are opaque; a repeated
// rsID overwrites the earlier record.
func ParseDataset(raw string) *Dataset {
	ds := &Dataset{snps: make(map[string]genetics.SNP)}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		var posField, chromField string
		switch {
		case isNumeric(fields[1]):
			posField, chromField = fields[1], fields[2]
		case isNumeric(fields[2]):
			posField, chromField = fields[2], fields[1]
		default:
			ds.skippedRecords++
			continue
		}
		position, err := strconv.ParseUint(posField, 10, 64)
		if err != nil {
			ds.skippedRecords++
			continue
		}

		genotype, ok := genetics.ParseGenotype(fields[3])
		if !ok {
			ds.skippedGenotypes++
			continue
		}

		ds.snps[fields[0]] = genetics.SNP{
			RSID:       fields[0],
			Chromosome: canonicalChromosome(chromField),
			Position:   position,
			Genotype:   genotype,
		}
	}
	return ds
}

// Len returns the number of retained records.
func (d *Dataset) Len() int {
	return len(d.snps)
}

// Get returns the record for the given rsID.
func (d *Dataset) Get(rsid string) (genetics.SNP, bool) {
	snp, ok := d.snps[rsid]
	return snp, ok
}

// SkippedGenotypes returns the number of records dropped for a genotype that
// is not two bases over ACGT (no-calls included).
func (d *Dataset) SkippedGenotypes() int {
	return d.skippedGenotypes
}

// SkippedRecords returns the number of records dropped because neither
// middle field was numeric.
func (d *Dataset) SkippedRecords() int {
	return d.skippedRecords
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// canonicalChromosome normalizes chromosome tokens: "chr1" and "1" compare
// equal, mitochondrial aliases map to "MT".
func canonicalChromosome(token string) string {
	c := strings.ToUpper(strings.TrimSpace(token))
	c = strings.TrimPrefix(c, "CHR")
	if c == "M" {
		c = "MT"
	}
	return c
}
