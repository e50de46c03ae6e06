package domain

// Feature keys for the AI-backed tools metered by credits.
const (
	FeatureResumeEnhancement = "resume_enhancement"
	FeatureJobMatch          = "job_match"
	FeatureBlogPost          = "blog_post"
)

var featureCosts = map[string]int64{
	FeatureResumeEnhancement: 10,
	FeatureJobMatch:          5,
	FeatureBlogPost:          15,
}

// FeatureCost returns the fixed credit cost of a feature key.
func FeatureCost(feature string) (int64, bool) {
	cost, ok := featureCosts[feature]
	return cost, ok
}
