package clinical_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	clinical "github.com/okian/medscribe/internal/domain/clinical"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStaticSummarizer_Summarize(t *testing.T) {
	Convey("Given a static summarizer", t, func() {
		s := clinical.NewStaticSummarizer()
		ctx := context.Background()

		Convey("When summarizing different transcripts", func() {
			inputs := []clinical.Request{
				{},
				{Transcript: ""},
				{Transcript: "Patient complains of a headache since Tuesday."},
				{Transcript: strings.Repeat("lorem ipsum ", 1000)},
			}

			Convey("Then every call returns the identical note", func() {
				for _, in := range inputs {
					got, err := s.Summarize(ctx, in)
					So(err, ShouldBeNil)
					So(got, ShouldResemble, clinical.DefaultSummary())
				}
			})
		})

		Convey("When a caller mutates the returned summary", func() {
			first, _ := s.Summarize(ctx, clinical.Request{})
			first.Codes[0] = "tampered"
			first.SOAP.Plan = "tampered"

			Convey("Then later calls are unaffected", func() {
				second, err := s.Summarize(ctx, clinical.Request{})
				So(err, ShouldBeNil)
				So(second.Codes[0], ShouldEqual, "SNOMED: 29857009 (Angina pectoris)")
				So(second.SOAP.Plan, ShouldEqual, "Order ECG, refer to cardiology.")
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := s.Summarize(cctx, clinical.Request{})

			Convey("Then an error is returned", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})

	Convey("Given a summarizer with a custom note", t, func() {
		custom := clinical.Summary{Narrative: "n", Codes: []string{"ICD-10: R51"}}
		s := clinical.NewStaticSummarizer(clinical.WithSummary(custom))
		custom.Codes[0] = "changed after construction"

		got, err := s.Summarize(context.Background(), clinical.Request{})
		So(err, ShouldBeNil)
		So(got.Codes, ShouldResemble, []string{"ICD-10: R51"})
	})
}

func TestSummaryJSON(t *testing.T) {
	Convey("Given the default summary", t, func() {
		raw, err := json.Marshal(clinical.DefaultSummary())
		So(err, ShouldBeNil)

		Convey("Then it serialises with the public field names", func() {
			var doc map[string]any
			So(json.Unmarshal(raw, &doc), ShouldBeNil)
			So(doc, ShouldContainKey, "soap")
			So(doc, ShouldContainKey, "narrative")
			So(doc, ShouldContainKey, "codes")
			soap := doc["soap"].(map[string]any)
			So(soap["subjective"], ShouldEqual, "Patient reports mild chest pain during exertion.")
			So(soap["objective"], ShouldEqual, "Vitals WNL. ECG pending.")
			So(soap["assessment"], ShouldEqual, "Suspected angina.")
			So(doc["narrative"], ShouldEqual, "The patient presents with mild chest pain during exertion. "+
				"No associated nausea or dizziness. ECG pending. Cardiology referral advised.")
		})
	})
}
