package transcode

import (
	"fmt"
	"strings"
)

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	QualityUltra  Quality = "ultra"

	DefaultQuality = QualityMedium
)

// Qualities lists every valid Quality, lowest first.
var Qualities = []Quality{QualityLow, QualityMedium, QualityHigh, QualityUltra}

// Preset is the set of encoder parameters a Quality stands for.
type Preset struct {
	Width        int
	Height       int
	FrameRate    int
	X264Preset   string
	CRF          int
	AudioBitrate string
}

var presets = map[Quality]Preset{
	QualityLow:    {Width: 854, Height: 480, FrameRate: 15, X264Preset: "veryfast", CRF: 30, AudioBitrate: "96k"},
	QualityMedium: {Width: 1280, Height: 720, FrameRate: 25, X264Preset: "medium", CRF: 23, AudioBitrate: "128k"},
	QualityHigh:   {Width: 1920, Height: 1080, FrameRate: 30, X264Preset: "slow", CRF: 20, AudioBitrate: "192k"},
	QualityUltra:  {Width: 1920, Height: 1080, FrameRate: 30, X264Preset: "slower", CRF: 17, AudioBitrate: "256k"},
}

// ParseQuality accepts a quality name in any case; the empty string means DefaultQuality.
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultQuality, nil
	}
	q := Quality(s)
	if _, ok := presets[q]; !ok {
		return "", fmt.Errorf("unknown quality %q (expected one of %s)", s, strings.Join(QualityNames(), ", "))
	}
	return q, nil
}

func QualityNames() []string {
	names := make([]string, len(Qualities))
	for i, q := range Qualities {
		names[i] = string(q)
	}
	return names
}

// Preset returns the encoder parameters for q, falling back to DefaultQuality for unknown values.
func (q Quality) Preset() Preset {
	if p, ok := presets[q]; ok {
		return p
	}
	return presets[DefaultQuality]
}

func (q Quality) String() string {
	return string(q)
}
