package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imstrack/imstrack/internal/usage"
)

// TrackerStats exposes the tracker's published counters.
type TrackerStats interface {
	PhoneStateString() string
	ActiveCalls() int
	TrackedCalls() int
	DisconnectCounts() map[string]uint64
	HandoverCounts() map[string]uint64
}

// UsageProvider exposes the video telephony usage ledger.
type UsageProvider interface {
	UsageDevice() usage.Snapshot
	UsagePerUID() map[int]usage.Snapshot
}

// Collector is a prometheus.Collector that gathers tracker metrics at
// scrape time.
type Collector struct {
	stats     TrackerStats
	usage     UsageProvider
	startTime time.Time

	// Metric descriptors.
	phoneStateDesc    *prometheus.Desc
	activeCallsDesc   *prometheus.Desc
	trackedCallsDesc  *prometheus.Desc
	disconnectsDesc   *prometheus.Desc
	handoversDesc     *prometheus.Desc
	usageDeviceDesc   *prometheus.Desc
	usagePerUIDDesc   *prometheus.Desc
	uptimeDesc        *prometheus.Desc
}

// NewCollector creates a new metrics collector. Either provider may be
// nil if unavailable.
func NewCollector(stats TrackerStats, usageProv UsageProvider, startTime time.Time) *Collector {
	return &Collector{
		stats:     stats,
		usage:     usageProv,
		startTime: startTime,

		phoneStateDesc: prometheus.NewDesc(
			"imstrack_phone_state",
			"Device call state (1 for the current state)",
			[]string{"state"}, nil,
		),
		activeCallsDesc: prometheus.NewDesc(
			"imstrack_active_calls",
			"Number of currently active call legs",
			nil, nil,
		),
		trackedCallsDesc: prometheus.NewDesc(
			"imstrack_tracked_calls",
			"Number of tracked call legs, including pending and disconnected",
			nil, nil,
		),
		disconnectsDesc: prometheus.NewDesc(
			"imstrack_disconnects_total",
			"Total disconnected calls by cause",
			[]string{"cause"}, nil,
		),
		handoversDesc: prometheus.NewDesc(
			"imstrack_handovers_total",
			"Total handover outcomes by kind",
			[]string{"kind"}, nil,
		),
		usageDeviceDesc: prometheus.NewDesc(
			"imstrack_vt_usage_bytes_total",
			"Total video telephony bytes by direction",
			[]string{"direction"}, nil,
		),
		usagePerUIDDesc: prometheus.NewDesc(
			"imstrack_vt_usage_uid_bytes_total",
			"Video telephony bytes attributed per UID",
			[]string{"uid", "direction"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"imstrack_uptime_seconds",
			"Seconds since the imstrack process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.phoneStateDesc
	ch <- c.activeCallsDesc
	ch <- c.trackedCallsDesc
	ch <- c.disconnectsDesc
	ch <- c.handoversDesc
	ch <- c.usageDeviceDesc
	ch <- c.usagePerUIDDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries the providers at
// scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.stats != nil {
		current := c.stats.PhoneStateString()
		for _, state := range []string{"idle", "ringing", "offhook"} {
			val := 0.0
			if state == current {
				val = 1.0
			}
			ch <- prometheus.MustNewConstMetric(
				c.phoneStateDesc, prometheus.GaugeValue, val, state,
			)
		}

		ch <- prometheus.MustNewConstMetric(
			c.activeCallsDesc, prometheus.GaugeValue,
			float64(c.stats.ActiveCalls()),
		)
		ch <- prometheus.MustNewConstMetric(
			c.trackedCallsDesc, prometheus.GaugeValue,
			float64(c.stats.TrackedCalls()),
		)

		for cause, n := range c.stats.DisconnectCounts() {
			ch <- prometheus.MustNewConstMetric(
				c.disconnectsDesc, prometheus.CounterValue,
				float64(n), cause,
			)
		}
		for kind, n := range c.stats.HandoverCounts() {
			ch <- prometheus.MustNewConstMetric(
				c.handoversDesc, prometheus.CounterValue,
				float64(n), kind,
			)
		}
	}

	if c.usage != nil {
		device := c.usage.UsageDevice()
		ch <- prometheus.MustNewConstMetric(
			c.usageDeviceDesc, prometheus.CounterValue,
			float64(device.RxBytes), "rx",
		)
		ch <- prometheus.MustNewConstMetric(
			c.usageDeviceDesc, prometheus.CounterValue,
			float64(device.TxBytes), "tx",
		)

		for uid, snap := range c.usage.UsagePerUID() {
			label := strconv.Itoa(uid)
			if uid == usage.UnknownUID {
				label = "unknown"
			}
			ch <- prometheus.MustNewConstMetric(
				c.usagePerUIDDesc, prometheus.CounterValue,
				float64(snap.RxBytes), label, "rx",
			)
			ch <- prometheus.MustNewConstMetric(
				c.usagePerUIDDesc, prometheus.CounterValue,
				float64(snap.TxBytes), label, "tx",
			)
		}
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
