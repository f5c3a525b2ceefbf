package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/releaselens/releaselens/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals IngestEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.IngestEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeIngestCompleted,
			RunID:         "run-123",
			EmittedAt:     now,
			Tables:        3,
			Chunks:        72,
			Failures:      []string{"load R24.1_Meta.csv: no header"},
			DurationMs:    4200,
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("run_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("tables"))
		Expect(got).To(HaveKey("chunks"))
		Expect(got).To(HaveKey("failures"))
		Expect(got).To(HaveKey("duration_ms"))
	})

	It("omits run counters from started events", func() {
		event := eventstream.IngestEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeIngestStarted,
			RunID:         "run-123",
			EmittedAt:     time.Now().UTC(),
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).NotTo(HaveKey("tables"))
		Expect(got).NotTo(HaveKey("chunks"))
		Expect(got).NotTo(HaveKey("error"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeIngestStarted).To(Equal("releaselens.ingest.started"))
		Expect(eventstream.EventTypeIngestCompleted).To(Equal("releaselens.ingest.completed"))
		Expect(eventstream.EventTypeIngestFailed).To(Equal("releaselens.ingest.failed"))
	})

	It("provides ErrNilIngestEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilIngestEvent).NotTo(BeNil())
		Expect(eventstream.ErrNilIngestEvent).To(MatchError("nil ingest event"))
	})
})
