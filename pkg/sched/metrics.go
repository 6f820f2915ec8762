package sched

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the Scheduler's list sizes and counters.
type Collector struct {
	s *Scheduler

	listLen *prometheus.Desc
	live    *prometheus.Desc
	orphans *prometheus.Desc
	pops    *prometheus.Desc
	ticks   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(s *Scheduler) *Collector {
	return &Collector{
		s:       s,
		listLen: prometheus.NewDesc("list_length", "Number of tasks in the list.", []string{"list"}, nil),
		live:    prometheus.NewDesc("live_elements", "Number of allocated tasks, orphans included.", nil, nil),
		orphans: prometheus.NewDesc("orphaned_elements", "Number of allocated tasks that are in no list.", nil, nil),
		pops:    prometheus.NewDesc("pops_total", "Number of retired tasks.", nil, nil),
		ticks:   prometheus.NewDesc("ticks_total", "Number of round-robin ticks.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.listLen
	ch <- c.live
	ch <- c.orphans
	ch <- c.pops
	ch <- c.ticks
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.s.Stats()
	for i, name := range c.s.opts.Lists {
		ch <- prometheus.MustNewConstMetric(c.listLen, prometheus.GaugeValue, float64(st.Lengths[i]), name)
	}
	ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(st.Live))
	ch <- prometheus.MustNewConstMetric(c.orphans, prometheus.GaugeValue, float64(st.Orphans))
	ch <- prometheus.MustNewConstMetric(c.pops, prometheus.CounterValue, float64(st.Pops))
	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(st.Ticks))
}
