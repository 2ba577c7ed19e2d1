package tiktok

import (
	"fmt"
	"strings"

	"studio/internal/domain"
)

// MapStatus folds a publish status into a JobStatus. On success PostID holds
// the public item id when TikTok reports one, otherwise the publish id.
func MapStatus(st PublishStatus, publishID string) domain.JobStatus {
	switch strings.ToUpper(st.Status) {
	case "PUBLISH_COMPLETE", "PUBLISH_SUCCESS", "SEND_TO_USER_INBOX":
		out := domain.Succeeded("")
		out.PostID = publishID
		if st.ItemID != "" {
			out.PostID = st.ItemID
		} else if len(st.PostIDs) > 0 {
			out.PostID = st.PostIDs[0].String()
		}
		return out
	case "FAILED", "PUBLISH_FAILED":
		return domain.Failed(st.FailReason)
	case "PROCESSING_UPLOAD", "PROCESSING_DOWNLOAD":
		return domain.Pending(50)
	default:
		return domain.Pending(0)
	}
}

// PostURL is the public link of a published video.
func PostURL(openID, itemID string) string {
	return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", openID, itemID)
}
