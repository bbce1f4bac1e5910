// Package messaging holds what the Kafka producers and consumers agree on
package messaging

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// Header keys set on document messages
const (
	HeaderCorrelationID = "correlation-id"
	HeaderTenantID      = "tenant-id"
	HeaderDLQReason     = "dlq-reason"
)

// Header returns the value of the first header named key, or ""
func Header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Brokers splits a comma separated broker list, dropping blanks
func Brokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
