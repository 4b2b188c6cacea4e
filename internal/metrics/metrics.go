package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	// Generator side
	PayloadsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_payloads_generated_total",
		Help: "Payloads emitted by the generator, by injected shape fault.",
	}, []string{"shape"})
	OverspillGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_overspill_generated_total",
		Help: "Samples whose value was pushed outside the sensor range.",
	})

	// Channel
	ChannelDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_channel_drops_total",
		Help: "Messages not delivered because a subscriber queue was full.",
	}, []string{"channel"})
	ChannelSubscribers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "telemetry_channel_subscribers",
		Help: "Active subscribers per channel.",
	}, []string{"channel"})

	// Ingestion
	PayloadsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_payloads_received_total",
		Help: "Payloads handed to the classifier.",
	})
	PayloadsClassified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_payloads_classified_total",
		Help: "Classification outcomes.",
	}, []string{"class"})
	PayloadsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_payloads_dropped_total",
		Help: "Dropped payloads by reason.",
	}, []string{"reason"})
	StoreUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_latest_store_updates_total",
		Help: "Readings applied to the latest-value store.",
	})

	// Stream transport
	StreamConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "telemetry_stream_connected",
		Help: "1 while the upstream telemetry stream is connected.",
	})
	StreamReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_stream_reconnects_total",
		Help: "Reconnect attempts to the upstream telemetry stream.",
	})
	StreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "telemetry_stream_clients",
		Help: "WebSocket clients subscribed to the telemetry stream.",
	})

	// Mirrors
	StateMirrorWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_state_mirror_writes_total",
		Help: "Readings written to the Redis latest-value mirror.",
	}, []string{"result"})
	DropJournalWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_drop_journal_writes_total",
		Help: "Dropped payloads written to the Postgres journal.",
	}, []string{"result"})
	OverspillAlerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_overspill_alerts_total",
		Help: "Overspill alerts by outcome.",
	}, []string{"result"})
	DispatchDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_dispatch_drops_total",
		Help: "Items not handed to a mirror because its queue was full.",
	}, []string{"sink"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		PayloadsGenerated,
		OverspillGenerated,
		ChannelDrops,
		ChannelSubscribers,
		PayloadsReceived,
		PayloadsClassified,
		PayloadsDropped,
		StoreUpdates,
		StreamConnected,
		StreamReconnects,
		StreamClients,
		StateMirrorWrites,
		DropJournalWrites,
		OverspillAlerts,
		DispatchDrops,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
