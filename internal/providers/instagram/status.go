package instagram

import (
	"strings"

	"studio/internal/domain"
)

// MapContainerStatus maps a container status_code. FINISHED means the upload
// is ready for media_publish; PUBLISHED means it already went out.
func MapContainerStatus(code, detail string) domain.JobStatus {
	switch strings.ToUpper(code) {
	case "FINISHED", "PUBLISHED":
		return domain.Succeeded("")
	case "ERROR", "EXPIRED":
		msg := detail
		if msg == "" {
			msg = "instagram could not process the video (" + strings.ToLower(code) + ")"
		}
		return domain.Failed(msg)
	case "IN_PROGRESS":
		return domain.Pending(50)
	default:
		return domain.Pending(0)
	}
}
