package unittest

import (
	"fmt"
	"strings"
)

// SNPLines builds a deterministic genotype dump with count records named
// rs1000, rs1001, ... in the "rsid position chromosome genotype" layout.
// The genotype of record i is produced by the given function.
func SNPLines(count int, genotype func(i int) string) string {
	var b strings.Builder
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, "rs%d %d %d %s\n", 1000+i, 100000+i*137, i%22+1, genotype(i))
	}
	return b.String()
}

// UniformSNPLines builds count records that all carry the same genotype.
func UniformSNPLines(count int, genotype string) string {
	return SNPLines(count, func(int) string { return genotype })
}
