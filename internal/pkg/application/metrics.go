package application

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what an export did with the records it was given.
type Metrics struct {
	RecordsProcessed prometheus.Counter
	PolygonsEmitted  prometheus.Counter
	PolygonsRejected prometheus.Counter
	SentinelRecords  prometheus.Counter
	OutOfOrder       prometheus.Counter
	ChannelsDropped  prometheus.Counter
}

// NewMetrics registers the export counters against reg, defaulting to the
// global registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{}

	var err error
	if m.RecordsProcessed, err = registerCounter(reg, "coverage_records_processed_total", "Spatial records fed through the section synthesizers."); err != nil {
		return nil, err
	}
	if m.PolygonsEmitted, err = registerCounter(reg, "coverage_polygons_emitted_total", "Coverage polygons emitted."); err != nil {
		return nil, err
	}
	if m.PolygonsRejected, err = registerCounter(reg, "coverage_polygons_rejected_total", "Coverage polygons discarded as invalid."); err != nil {
		return nil, err
	}
	if m.SentinelRecords, err = registerCounter(reg, "coverage_sentinel_records_total", "Records skipped because they carried no position fix."); err != nil {
		return nil, err
	}
	if m.OutOfOrder, err = registerCounter(reg, "coverage_out_of_order_records_total", "Records rejected because they preceded the last processed record."); err != nil {
		return nil, err
	}
	if m.ChannelsDropped, err = registerCounter(reg, "coverage_channels_dropped_total", "Section channels dropped for incompatible units."); err != nil {
		return nil, err
	}

	return m, nil
}

func registerCounter(reg prometheus.Registerer, name, help string) (prometheus.Counter, error) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
