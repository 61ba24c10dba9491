package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const correlationIDLength = 12

// NewCorrelationID derives a short trace id from the event's natural keys and
// the generation time. When both keys are missing a random seed stands in.
// The id is only written to logs.
func NewCorrelationID(orderID, subscriptionID string, now time.Time) string {
	if orderID == "" && subscriptionID == "" {
		orderID = uuid.NewString()
	}
	sum := sha256.Sum256([]byte(orderID + "|" + subscriptionID + "|" + strconv.FormatInt(now.UnixNano(), 10)))
	return hex.EncodeToString(sum[:])[:correlationIDLength]
}
