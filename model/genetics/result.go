package genetics

// IBSAnalysis holds the identity-by-state counts over the common SNP set.
// TotalSNPs is always IBS0+IBS1+IBS2, and IBSScore lies in [0,1].
type IBSAnalysis struct {
	IBS0      int     `json:"ibs0"`
	IBS1      int     `json:"ibs1"`
	IBS2      int     `json:"ibs2"`
	TotalSNPs int     `json:"total_snps"`
	IBSScore  float64 `json:"ibs_score"`
}

// Result is the outcome of one pairwise analysis, serialized verbatim as the
// on-chain result string. Field order is fixed by the struct definition and
// must not be reordered: downstream parsers rely on it.
type Result struct {
	Status          string      `json:"status"`
	NCommonSNPs     int         `json:"n_common_snps"`
	IBS             IBSAnalysis `json:"ibs_analysis"`
	IBS2Percentage  float64     `json:"ibs2_percentage"`
	Relationship    string      `json:"relationship"`
	Confidence      float64     `json:"confidence"`
	PCADistance     float64     `json:"pca_distance"`
	Recommendations []string    `json:"recommendations"`
}
