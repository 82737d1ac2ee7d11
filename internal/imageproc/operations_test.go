package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rapidphoto/pipeline/internal/model"
	"github.com/stretchr/testify/require"
)

// testJPEG encodes a solid-color image of the given dimensions the same way a
// real upload would arrive.
func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 120, G: 80, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func testCanonical(t *testing.T, width, height int) *model.CanonicalImage {
	t.Helper()
	src, err := Decode(testJPEG(t, width, height))
	require.NoError(t, err)
	return src
}

func TestDecode(t *testing.T) {
	src, err := Decode(testJPEG(t, 640, 480))

	require.NoError(t, err)
	require.Equal(t, 640, src.Width)
	require.Equal(t, 480, src.Height)
	require.Equal(t, "jpeg", src.SourceFormat)
	require.Positive(t, src.ByteSize)
}

func TestDecode_InvalidBytes(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"))
	require.ErrorIs(t, err, model.ErrDecode)
}

func TestThumbnailer_ExactDimensions(t *testing.T) {
	tests := []struct {
		name    string
		srcW    int
		srcH    int
		targetW int
		targetH int
	}{
		{"square source", 500, 500, 300, 300},
		{"wide source crops width", 1200, 400, 300, 300},
		{"tall source crops height", 400, 1200, 300, 300},
		{"smaller than target", 100, 80, 300, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testCanonical(t, tt.srcW, tt.srcH)

			data, err := Thumbnailer(src, tt.targetW, tt.targetH, 85)
			require.NoError(t, err)

			cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
			require.NoError(t, err)
			require.Equal(t, "jpeg", format)
			require.Equal(t, tt.targetW, cfg.Width)
			require.Equal(t, tt.targetH, cfg.Height)
		})
	}
}

func TestThumbnailer_NilSource(t *testing.T) {
	_, err := Thumbnailer(nil, 300, 300, 85)
	require.Error(t, err)
}

func TestRenderOne(t *testing.T) {
	tests := []struct {
		name       string
		srcW       int
		srcH       int
		spec       model.RenditionSpec
		wantWidth  int
		wantHeight int
	}{
		{
			name:       "downscale preserves aspect",
			srcW:       1920,
			srcH:       1080,
			spec:       model.RenditionSpec{TargetWidth: 960, Quality: 80},
			wantWidth:  960,
			wantHeight: 540,
		},
		{
			name:       "odd aspect rounds height",
			srcW:       1000,
			srcH:       667,
			spec:       model.RenditionSpec{TargetWidth: 640, Quality: 80},
			wantWidth:  640,
			wantHeight: 427, // 640*667/1000 = 426.88
		},
		{
			name:       "never upscale",
			srcW:       640,
			srcH:       480,
			spec:       model.RenditionSpec{TargetWidth: 1920, Quality: 80},
			wantWidth:  640,
			wantHeight: 480,
		},
		{
			name:       "equal width keeps dimensions",
			srcW:       1280,
			srcH:       720,
			spec:       model.RenditionSpec{TargetWidth: 1280, Quality: 80},
			wantWidth:  1280,
			wantHeight: 720,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testCanonical(t, tt.srcW, tt.srcH)

			rend, err := RenderOne(src, tt.spec)
			require.NoError(t, err)
			require.Equal(t, tt.wantWidth, rend.Width)
			require.Equal(t, tt.wantHeight, rend.Height)
			require.Equal(t, tt.spec, rend.Spec)
			require.NotEmpty(t, rend.Data)

			_, format, err := image.DecodeConfig(bytes.NewReader(rend.Data))
			require.NoError(t, err)
			require.Equal(t, "webp", format)
		})
	}
}

func TestRenderOne_InvalidSpec(t *testing.T) {
	src := testCanonical(t, 100, 100)

	tests := []struct {
		name string
		spec model.RenditionSpec
	}{
		{"zero width", model.RenditionSpec{TargetWidth: 0, Quality: 80}},
		{"negative width", model.RenditionSpec{TargetWidth: -640, Quality: 80}},
		{"quality above range", model.RenditionSpec{TargetWidth: 640, Quality: 101}},
		{"negative quality", model.RenditionSpec{TargetWidth: 640, Quality: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RenderOne(src, tt.spec)
			require.ErrorIs(t, err, model.ErrInvalidParameter)
		})
	}
}

func TestValidateSpecs(t *testing.T) {
	tests := []struct {
		name    string
		specs   []model.RenditionSpec
		wantErr bool
	}{
		{
			name: "valid set",
			specs: []model.RenditionSpec{
				{TargetWidth: 640, Quality: 80},
				{TargetWidth: 1280, Quality: 80},
			},
		},
		{name: "empty set", specs: nil, wantErr: true},
		{
			name:    "one bad width poisons the set",
			specs:   []model.RenditionSpec{{TargetWidth: 640, Quality: 80}, {TargetWidth: 0, Quality: 80}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSpecs(tt.specs)
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
		})
	}
}
