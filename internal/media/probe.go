package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	Duration   string `json:"duration"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

func parseProbeOutput(data []byte) (ProbeResult, error) {
	var parsed probeOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return ProbeResult{}, fmt.Errorf("parse probe output: %w", err)
	}
	if len(parsed.Streams) == 0 {
		return ProbeResult{}, errors.New("no decodable streams")
	}

	result := ProbeResult{
		DurationSeconds: parseFloatField(parsed.Format.Duration),
		BitrateBPS:      parseIntField(parsed.Format.BitRate),
	}
	for _, stream := range parsed.Streams {
		switch stream.CodecType {
		case "video":
			if !result.HasVideo {
				result.HasVideo = true
				result.Width = stream.Width
				result.Height = stream.Height
				result.Codec = stream.CodecName
				result.FPS = parseFrameRate(stream.RFrameRate)
			}
		case "audio":
			result.HasAudio = true
			if result.Codec == "" {
				result.Codec = stream.CodecName
			}
		}
		if result.DurationSeconds == 0 {
			result.DurationSeconds = parseFloatField(stream.Duration)
		}
	}
	return result, nil
}

// parseFrameRate converts the prober's "30000/1001" rational notation.
func parseFrameRate(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" || value == "0/0" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	if !found {
		return parseFloatField(value)
	}
	n := parseFloatField(num)
	d := parseFloatField(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloatField(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return f
}

func parseIntField(value string) int64 {
	i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return i
}
