package pipeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/rapidphoto/pipeline/internal/model"
	"github.com/wb-go/wbf/config"
)

// дефолты совпадают с тем что раздает бекенд при выкладке
const (
	defaultThumbWidth    = 300
	defaultThumbHeight   = 300
	defaultThumbQuality  = 85
	defaultWebPQuality   = 80
	defaultWidths        = "640,1280,1920,2560"
	defaultMinConfidence = 80.0
	defaultMaxLabels     = 20
	defaultMaxTags       = 10
	defaultOpTimeout     = 5 * time.Second
)

// ConfigFromEnv builds the pipeline tunables from the app config, falling back
// to defaults for anything unset or unparsable.
func ConfigFromEnv(appConfig *config.Config) Config {
	webpQuality := intFromEnv(appConfig, "WEBP_QUALITY", defaultWebPQuality)

	widthsRaw := appConfig.GetString("RENDITION_WIDTHS")
	if widthsRaw == "" {
		widthsRaw = defaultWidths
	}
	specs := make([]model.RenditionSpec, 0, 4)
	for _, w := range strings.Split(widthsRaw, ",") {
		width, err := strconv.Atoi(strings.TrimSpace(w))
		if err != nil {
			continue
		}
		specs = append(specs, model.RenditionSpec{TargetWidth: width, Quality: webpQuality})
	}

	return Config{
		ThumbWidth:    intFromEnv(appConfig, "THUMBNAIL_WIDTH", defaultThumbWidth),
		ThumbHeight:   intFromEnv(appConfig, "THUMBNAIL_HEIGHT", defaultThumbHeight),
		ThumbQuality:  intFromEnv(appConfig, "THUMBNAIL_QUALITY", defaultThumbQuality),
		Renditions:    specs,
		MinConfidence: floatFromEnv(appConfig, "VISION_MIN_CONFIDENCE", defaultMinConfidence),
		MaxLabels:     intFromEnv(appConfig, "VISION_MAX_LABELS", defaultMaxLabels),
		MaxTags:       intFromEnv(appConfig, "MAX_TAGS", defaultMaxTags),
		OpTimeout:     defaultOpTimeout,
	}
}

func intFromEnv(appConfig *config.Config, key string, fallback int) int {
	raw := appConfig.GetString(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}

func floatFromEnv(appConfig *config.Config, key string, fallback float64) float64 {
	raw := appConfig.GetString(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return val
}
