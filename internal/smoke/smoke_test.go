package smoke

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/medscribe/internal/adapters/http/api"
	"github.com/okian/medscribe/internal/adapters/stt"
	service "github.com/okian/medscribe/internal/app"
	"github.com/okian/medscribe/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// startService runs the real HTTP stack on top of transcriber.
func startService(t *testing.T, transcriber stt.Transcriber, queue int) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	svc := service.New(
		service.WithWorkerCount(2),
		service.WithQueueSize(queue),
		service.WithSpoolDir(t.TempDir()),
		service.WithTranscriber(transcriber),
	)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, 1<<20).Register(ctx, mux)
	ts := httptest.NewServer(api.Chain(mux, nil))
	t.Cleanup(func() {
		ts.Close()
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = svc.Stop(stopCtx)
	})
	return ts
}

func TestRun(t *testing.T) {
	Convey("Given a running service with the mock backend", t, func() {
		ts := startService(t, stt.NewMock(), 16)
		cfg := &Config{
			BaseURL:    ts.URL,
			Requests:   8,
			Workers:    3,
			Timeout:    5 * time.Second,
			Retries:    2,
			ExpectText: stt.DefaultMockText,
		}

		Convey("When running the smoke test", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then every step succeeds", func() {
				So(err, ShouldBeNil)
				So(stats.Summaries, ShouldEqual, 1)
				So(stats.Syncs, ShouldEqual, 1)
				So(stats.Submitted, ShouldEqual, 8)
				So(stats.Succeeded, ShouldEqual, 8)
				So(stats.Failed, ShouldEqual, 0)
			})
		})

		Convey("When expecting a different transcript", func() {
			cfg.ExpectText = "something else"
			cfg.Requests = 2
			stats, err := Run(context.Background(), cfg)

			So(errors.Is(err, ErrFailures), ShouldBeTrue)
			So(stats.Mismatched, ShouldEqual, 2)
		})
	})

	Convey("Given a backend that always fails", t, func() {
		ts := startService(t, &stt.Mock{Err: errors.New("engine down")}, 4)
		cfg := &Config{BaseURL: ts.URL, Requests: 2, Workers: 1, Timeout: 5 * time.Second}

		stats, err := Run(context.Background(), cfg)

		So(errors.Is(err, ErrFailures), ShouldBeTrue)
		So(stats.Failed, ShouldEqual, 2)
	})

	Convey("Given nothing listening", t, func() {
		cfg := &Config{BaseURL: "http://127.0.0.1:1", Requests: 1, Workers: 1, Timeout: time.Second}

		_, err := Run(context.Background(), cfg)

		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "health check")
	})
}

func TestClient(t *testing.T) {
	Convey("Given a client against the service", t, func() {
		ts := startService(t, stt.NewMock(), 4)
		client := NewClient(ts.URL, 5*time.Second, 0)
		ctx := context.Background()

		Convey("When the service rejects a request", func() {
			resp, err := client.rc.R().SetContext(ctx).SetError(&ErrorResponse{}).Get("/api/summarize")
			err = check(resp, err)

			Convey("Then the status and body are surfaced", func() {
				var se *StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Status, ShouldEqual, http.StatusMethodNotAllowed)
				So(se.Body.Code, ShouldEqual, "method_not_allowed")
				So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
			})
		})

		Convey("When syncing a bundle", func() {
			ack, err := client.Sync(ctx, sampleBundle())

			So(err, ShouldBeNil)
			So(ack.Status, ShouldEqual, "success")
		})
	})
}

func TestVerifySummary(t *testing.T) {
	Convey("Given an incomplete summary", t, func() {
		err := verifySummary(SummaryResponse{SOAP: SOAPNote{Subjective: "pain"}})

		So(errors.Is(err, ErrBadSummary), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "codes")
	})
}

func TestAudio(t *testing.T) {
	Convey("Given the WAV generator", t, func() {
		wav := SilentWAV(500 * time.Millisecond)

		So(string(wav[0:4]), ShouldEqual, "RIFF")
		So(string(wav[8:12]), ShouldEqual, "WAVE")
		So(binary.LittleEndian.Uint32(wav[24:28]), ShouldEqual, uint32(sampleRate))
		So(len(wav), ShouldEqual, 44+sampleRate/2*2)
	})

	Convey("Given an audio path", t, func() {
		path := filepath.Join(t.TempDir(), "visit.mp3")
		So(os.WriteFile(path, []byte("ID3"), 0o600), ShouldBeNil)

		name, data, err := loadAudio(path)
		So(err, ShouldBeNil)
		So(name, ShouldEqual, "visit.mp3")
		So(string(data), ShouldEqual, "ID3")

		_, _, err = loadAudio(filepath.Join(t.TempDir(), "missing.wav"))
		So(err, ShouldNotBeNil)
	})
}
