package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newNotificationID returns notif_<unix-millis>_<9 random hex chars>.
func newNotificationID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("notif_%d_%s", now.UnixMilli(), suffix)
}
