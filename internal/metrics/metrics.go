// Package metrics exposes prometheus collectors for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pdfqa"

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	Messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Page context messages handled, by action and outcome.",
	}, []string{"action", "outcome"})

	Extractions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractions_total",
		Help:      "Extraction cycles, by outcome.",
	}, []string{"outcome"})

	ExtractedPages = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "extracted_pages",
		Help:      "Pages per successfully extracted document.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	Answers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_total",
		Help:      "Question/answer interactions, by outcome.",
	}, []string{"outcome"})

	AnswerTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answer_tokens_total",
		Help:      "Streamed answer tokens appended to the view.",
	})
)

// Registry holds every collector above.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(Messages, Extractions, ExtractedPages, Answers, AnswerTokens)
}

// Outcome maps an error to a metric label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
