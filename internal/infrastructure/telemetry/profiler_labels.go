package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelOperation = "operation"
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
	ProfilingLabelTenantID  = "tenant_id"
)

// Operations labelled in profiles
const (
	OperationAddPayment     = "add_payment"
	OperationDeletePayment  = "delete_payment"
	OperationTransition     = "transition_status"
	OperationOverdueSweep   = "overdue_sweep"
	OperationOutboxDispatch = "outbox_dispatch"
)

// MaxLabelValueLength caps label values
const MaxLabelValueLength = 128

// highCardinalityLabels never become profile labels
var highCardinalityLabels = map[string]bool{
	"request_id": true,
	"trace_id":   true,
	"span_id":    true,
	"rental_id":  true,
	"payment_id": true,
}

// WithProfilingLabels runs fn with pprof labels attached so samples taken
// inside fn can be filtered in Pyroscope
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// OperationLabels returns the label set of one named operation
func OperationLabels(operation string) map[string]string {
	return map[string]string{ProfilingLabelOperation: operation}
}

// HTTPRequestLabels returns the label set of one HTTP route
func HTTPRequestLabels(route, method, tenantID string) map[string]string {
	labels := make(map[string]string, 3)
	if route != "" {
		labels[ProfilingLabelRoute] = route
	}
	if method != "" {
		labels[ProfilingLabelMethod] = method
	}
	if tenantID != "" {
		labels[ProfilingLabelTenantID] = tenantID
	}
	return labels
}

// sanitizeLabels returns sorted key/value pairs with empty and
// high-cardinality entries removed and values truncated
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, k := range keys {
		v := labels[k]
		key := sanitizeLabelKey(k)
		if key == "" || v == "" || highCardinalityLabels[key] {
			continue
		}
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		pairs = append(pairs, key, v)
	}
	return pairs
}

func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	var b strings.Builder
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
		case c == ' ', c == '-':
			b.WriteByte('_')
		}
	}
	return b.String()
}
