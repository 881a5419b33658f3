package prometheusmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prebid/auction-orchestrator/metrics"
)

// preloadLabelValues makes every known series visible on the first scrape, at zero.
func preloadLabelValues(m *Metrics) {
	var (
		boolValues          = boolValuesAsString()
		cacheResultValues   = enumAsString(metrics.CacheResults())
		requestStatusValues = enumAsString(metrics.RequestStatuses())
		requestTypeValues   = enumAsString(metrics.RequestTypes())
	)

	preloadLabelValuesForCounter(m.requests, map[string][]string{
		requestTypeLabel:   requestTypeValues,
		requestStatusLabel: requestStatusValues,
	})

	preloadLabelValuesForHistogram(m.requestsTimer, map[string][]string{
		requestTypeLabel: requestTypeValues,
	})

	preloadLabelValuesForCounter(m.impressions, map[string][]string{
		isBannerLabel: boolValues,
		isVideoLabel:  boolValues,
		isAudioLabel:  boolValues,
		isNativeLabel: boolValues,
	})

	preloadLabelValuesForCounter(m.categoryLookups, map[string][]string{
		cacheResultLabel: cacheResultValues,
	})

	preloadLabelValuesForHistogram(m.prebidCacheTimer, map[string][]string{
		successLabel: boolValues,
	})
}

func enumAsString[T ~string](values []T) []string {
	valuesAsString := make([]string, len(values))
	for i, v := range values {
		valuesAsString[i] = string(v)
	}
	return valuesAsString
}

func boolValuesAsString() []string {
	return []string{
		strconv.FormatBool(true),
		strconv.FormatBool(false),
	}
}

func preloadLabelValuesForCounter(counter *prometheus.CounterVec, labelsWithValues map[string][]string) {
	registerLabelPermutations(labelsWithValues, func(labels prometheus.Labels) {
		counter.With(labels)
	})
}

func preloadLabelValuesForHistogram(histogram *prometheus.HistogramVec, labelsWithValues map[string][]string) {
	registerLabelPermutations(labelsWithValues, func(labels prometheus.Labels) {
		histogram.With(labels)
	})
}

func registerLabelPermutations(labelsWithValues map[string][]string, register func(prometheus.Labels)) {
	if len(labelsWithValues) == 0 {
		return
	}

	keys := make([]string, 0, len(labelsWithValues))
	values := make([][]string, 0, len(labelsWithValues))
	for k, v := range labelsWithValues {
		keys = append(keys, k)
		values = append(values, v)
	}

	labels := prometheus.Labels{}
	registerLabelPermutationsRecursive(0, keys, values, labels, register)
}

func registerLabelPermutationsRecursive(depth int, keys []string, values [][]string, labels prometheus.Labels, register func(prometheus.Labels)) {
	label := keys[depth]
	isLeaf := depth == len(keys)-1

	for _, v := range values[depth] {
		labels[label] = v

		if isLeaf {
			registeredLabels := make(prometheus.Labels, len(labels))
			for k, v := range labels {
				registeredLabels[k] = v
			}
			register(registeredLabels)
		} else {
			registerLabelPermutationsRecursive(depth+1, keys, values, labels, register)
		}
	}
}
