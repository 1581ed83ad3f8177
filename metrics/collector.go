// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exports message queue statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"code.hybscloud.com/msgq"
)

var queueLabels = []string{"queue", "mode", "name"}

// Collector is a prometheus.Collector reading a kernel's queues on every
// scrape.
type Collector struct {
	k *msgq.Kernel

	depth    *prometheus.Desc
	capacity *prometheus.Desc
	readers  *prometheus.Desc
	writers  *prometheus.Desc

	sends       *prometheus.Desc
	receives    *prometheus.Desc
	timeouts    *prometheus.Desc
	unavailable *prometheus.Desc
	deleted     *prometheus.Desc
	delivered   *prometheus.Desc
	failed      *prometheus.Desc
}

// NewCollector returns a collector for k. Metric names are prefixed with
// namespace, e.g. "msgq".
func NewCollector(k *msgq.Kernel, namespace string) *Collector {
	queue := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "queue", name), help, queueLabels, nil)
	}
	total := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &Collector{
		k:           k,
		depth:       queue("depth", "Messages currently queued."),
		capacity:    queue("capacity", "Maximum messages for normal traffic."),
		readers:     queue("readers_waiting", "Tasks blocked in receive."),
		writers:     queue("writers_waiting", "Tasks blocked in send."),
		sends:       total("sends_total", "Successful sends."),
		receives:    total("receives_total", "Successful receives."),
		timeouts:    total("timeouts_total", "Calls that ended in a timeout."),
		unavailable: total("unavailable_total", "NoWait calls that would have blocked."),
		deleted:     total("deleted_total", "Blocked calls ended by queue deletion."),
		delivered:   total("events_delivered_total", "Events delivered to tasks."),
		failed:      total("events_failed_total", "Events that could not be delivered."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.depth, c.capacity, c.readers, c.writers,
		c.sends, c.receives, c.timeouts, c.unavailable, c.deleted, c.delivered, c.failed,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector. Queues that disappear between
// enumeration and snapshot are skipped.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	handles := append(c.k.Queues(), c.k.NamedQueues()...)
	for _, h := range handles {
		st, err := c.k.Stat(h)
		if err != nil {
			continue
		}
		labels := []string{h.String(), st.Mode.String(), st.Name}
		ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(st.Depth), labels...)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(st.Capacity), labels...)
		ch <- prometheus.MustNewConstMetric(c.readers, prometheus.GaugeValue, float64(st.ReadersWaiting), labels...)
		ch <- prometheus.MustNewConstMetric(c.writers, prometheus.GaugeValue, float64(st.WritersWaiting), labels...)
	}

	n := c.k.Counters()
	for _, m := range []struct {
		d *prometheus.Desc
		v uint64
	}{
		{c.sends, n.Sends},
		{c.receives, n.Receives},
		{c.timeouts, n.Timeouts},
		{c.unavailable, n.Unavailable},
		{c.deleted, n.Deleted},
		{c.delivered, n.EventsDelivered},
		{c.failed, n.EventsFailed},
	} {
		ch <- prometheus.MustNewConstMetric(m.d, prometheus.CounterValue, float64(m.v))
	}
}
