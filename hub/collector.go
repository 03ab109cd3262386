package hub

import "github.com/prometheus/client_golang/prometheus"

// Collector exports hub metrics to Prometheus.
type Collector struct {
	hub     Hub
	ports   *prometheus.Desc
	flows   *prometheus.Desc
	backlog *prometheus.Desc
	routed  *prometheus.Desc
	dropped *prometheus.Desc
	posted  *prometheus.Desc
}

// NewCollector describes h's metrics under the switchboard_hub namespace,
// labelled with the hub name.
func NewCollector(h Hub) *Collector {
	labels := prometheus.Labels{"hub": h.Name()}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("switchboard", "hub", name), help, nil, labels)
	}

	return &Collector{
		hub:     h,
		ports:   desc("ports", "Registered ports."),
		flows:   desc("flows", "Installed flows."),
		backlog: desc("backlog", "Messages waiting for the routing loop."),
		routed:  desc("messages_routed_total", "Messages delivered to a destination port."),
		dropped: desc("messages_dropped_total", "Messages dropped for an unknown flow or destination."),
		posted:  desc("messages_posted_total", "Messages posted from outside the routing loop."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ports
	ch <- c.flows
	ch <- c.backlog
	ch <- c.routed
	ch <- c.dropped
	ch <- c.posted
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.hub.Metrics()
	ch <- prometheus.MustNewConstMetric(c.ports, prometheus.GaugeValue, float64(s.Ports))
	ch <- prometheus.MustNewConstMetric(c.flows, prometheus.GaugeValue, float64(s.Flows))
	ch <- prometheus.MustNewConstMetric(c.backlog, prometheus.GaugeValue, float64(s.Backlog))
	ch <- prometheus.MustNewConstMetric(c.routed, prometheus.CounterValue, float64(s.Routed))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.Dropped))
	ch <- prometheus.MustNewConstMetric(c.posted, prometheus.CounterValue, float64(s.Posted))
}
