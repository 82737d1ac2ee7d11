package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/config"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	cfg := ConfigFromEnv(config.New())

	require.Equal(t, 300, cfg.ThumbWidth)
	require.Equal(t, 300, cfg.ThumbHeight)
	require.Equal(t, 85, cfg.ThumbQuality)
	require.Equal(t, 80.0, cfg.MinConfidence)
	require.Equal(t, 20, cfg.MaxLabels)
	require.Equal(t, 10, cfg.MaxTags)
	require.Equal(t, 5*time.Second, cfg.OpTimeout)

	require.Len(t, cfg.Renditions, 4)
	widths := make([]int, 0, 4)
	for _, s := range cfg.Renditions {
		widths = append(widths, s.TargetWidth)
		require.Equal(t, 80, s.Quality)
	}
	require.Equal(t, []int{640, 1280, 1920, 2560}, widths)
}

func TestConfigFromEnv_DefaultsPassValidation(t *testing.T) {
	cfg := ConfigFromEnv(config.New())

	_, err := New(cfg, &mockRepo{}, &mockStorage{}, &mockDetector{}, &mockNotifier{})
	require.NoError(t, err)
}
