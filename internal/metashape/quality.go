package metashape

import "fmt"

// Quality is the depth-map downscale factor passed to the processing
// script. Lower values mean higher quality.
type Quality int

// Depth map quality levels accepted by the processing script.
const (
	QualityUltra  Quality = 1
	QualityHigh   Quality = 2
	QualityMedium Quality = 4
)

// ParseQuality validates a raw quality value from configuration or flags.
func ParseQuality(v int) (Quality, error) {
	switch q := Quality(v); q {
	case QualityUltra, QualityHigh, QualityMedium:
		return q, nil
	default:
		return 0, fmt.Errorf("invalid dense cloud quality %d (must be 1, 2 or 4)", v)
	}
}

func (q Quality) String() string {
	switch q {
	case QualityUltra:
		return "ultra"
	case QualityHigh:
		return "high"
	case QualityMedium:
		return "medium"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}
