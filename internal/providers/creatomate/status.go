package creatomate

import (
	"strings"

	"studio/internal/domain"
)

var progressByStatus = map[string]int{
	"planned":      10,
	"waiting":      30,
	"transcribing": 50,
	"rendering":    70,
	"succeeded":    100,
}

// Progress returns the fixed progress value for a render status, or 0.
func Progress(status string) int {
	return progressByStatus[strings.ToLower(strings.TrimSpace(status))]
}

// MapStatus maps Creatomate's vocabulary into a JobStatus.
func MapStatus(status, resultURL, errorMessage string) domain.JobStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded":
		return domain.Succeeded(resultURL)
	case "failed":
		return domain.Failed(errorMessage)
	default:
		return domain.Pending(Progress(status))
	}
}
