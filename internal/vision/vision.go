// Package vision defines the label-detection contract and the tag ranking logic
package vision

import (
	"context"
	"sort"

	"github.com/rapidphoto/pipeline/internal/model"
)

// LabelDetector - контракт vision-сервиса; фильтрация по confidence и лимит
// применяются на стороне сервиса
type LabelDetector interface {
	DetectLabels(ctx context.Context, storageKey string, minConfidence float64, maxLabels int) ([]model.Label, error)
}

// ExtractTags ranks labels by confidence descending (stable, so the response
// order breaks ties) and returns at most maxTags names. Pure function.
func ExtractTags(labels []model.Label, maxTags int) []string {
	if maxTags <= 0 || len(labels) == 0 {
		return []string{}
	}

	ranked := make([]model.Label, len(labels))
	copy(ranked, labels)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	if maxTags > len(ranked) {
		maxTags = len(ranked)
	}

	tags := make([]string, 0, maxTags)
	for _, l := range ranked[:maxTags] {
		tags = append(tags, l.Name)
	}
	return tags
}
