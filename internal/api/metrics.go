package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricLinksEncoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_links_encoded_total",
		Help: "Share links requested, by result",
	}, []string{"result"})

	metricLinksDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_links_decoded_total",
		Help: "Inbound join links decoded, by result",
	}, []string{"result"})

	metricClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "api_clients",
		Help: "Registered clients",
	})
)
