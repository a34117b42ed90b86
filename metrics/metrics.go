// Package metrics defines prometheus metric types and provides convenience
// methods to add accounting to programs built on the nfnetlink codec.
//
// When defining new operations or metrics, these are helpful values to track:
//   - things coming into or going out of the system: messages, packets, verdicts.
//   - the success or error status of any of the above.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesParsed counts netfilter messages decoded from the transport,
	// labelled by subsystem name.
	MessagesParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nfnetlink_messages_parsed_total",
			Help: "Number of netfilter netlink messages parsed.",
		},
		[]string{"subsystem"})

	// MessagesEmitted counts netfilter messages encoded for the transport,
	// labelled by subsystem name.
	MessagesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nfnetlink_messages_emitted_total",
			Help: "Number of netfilter netlink messages emitted.",
		},
		[]string{"subsystem"})

	// ParseErrors counts messages the codec rejected, labelled by
	// subsystem name.
	ParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nfnetlink_parse_errors_total",
			Help: "Number of netfilter netlink messages that failed to parse.",
		},
		[]string{"subsystem"})
)

// SubsystemLabel maps a subsystem id to the label value used on the
// counters above.
func SubsystemLabel(subsys uint8) string {
	switch subsys {
	case 1:
		return "conntrack"
	case 3:
		return "nfqueue"
	case 4:
		return "nflog"
	default:
		return "other"
	}
}
