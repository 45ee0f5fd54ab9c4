package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/okian/medscribe/internal/adapters/stt"
	app "github.com/okian/medscribe/internal/app"
	"github.com/okian/medscribe/internal/config"
	"github.com/okian/medscribe/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When loading configuration from the environment", func() {
			t.Setenv("MEDSCRIBE_ADDR", ":8080")
			t.Setenv("MEDSCRIBE_STT_BACKEND", "mock")
			t.Setenv("MEDSCRIBE_TRANSCRIBE_WORKERS", "4")

			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.STTBackend, convey.ShouldEqual, config.BackendMock)
			convey.So(cfg.TranscribeWorkers, convey.ShouldEqual, 4)
		})

		convey.Convey("When serving through the assembled HTTP server", func() {
			ctx := context.Background()
			cfg := config.New()
			cfg.STTBackend = config.BackendMock
			cfg.SpoolDir = t.TempDir()

			transcriber, err := stt.New(cfg)
			convey.So(err, convey.ShouldBeNil)

			svc := app.New(
				app.WithWorkerCount(1),
				app.WithSpoolDir(cfg.SpoolDir),
				app.WithMaxUploadBytes(cfg.MaxUploadBytes),
				app.WithTranscriber(transcriber),
			)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer func() {
				stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				_ = svc.Stop(stopCtx)
			}()

			srv := newHTTPServer(ctx, cfg, svc)
			convey.So(srv.Addr, convey.ShouldEqual, cfg.Addr)
			convey.So(srv.ReadTimeout, convey.ShouldEqual, cfg.ReadTimeout)

			ts := httptest.NewServer(srv.Handler)
			defer ts.Close()

			convey.Convey("Then summarize returns a SOAP note", func() {
				resp, err := http.Post(ts.URL+"/api/summarize", "application/json", bytes.NewBufferString(`{"transcript":"x"}`))
				convey.So(err, convey.ShouldBeNil)
				defer resp.Body.Close()

				var body map[string]any
				convey.So(json.NewDecoder(resp.Body).Decode(&body), convey.ShouldBeNil)
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(body, convey.ShouldContainKey, "soap")
				convey.So(resp.Header.Get("X-Request-ID"), convey.ShouldNotBeEmpty)
			})

			convey.Convey("And transcribe uses the mock backend", func() {
				var buf bytes.Buffer
				mw := multipart.NewWriter(&buf)
				fw, _ := mw.CreateFormFile("file", "visit.wav")
				_, _ = fw.Write([]byte("audio"))
				_ = mw.Close()

				resp, err := http.Post(ts.URL+"/api/transcribe", mw.FormDataContentType(), &buf)
				convey.So(err, convey.ShouldBeNil)
				defer resp.Body.Close()

				var body map[string]string
				convey.So(json.NewDecoder(resp.Body).Decode(&body), convey.ShouldBeNil)
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(body["transcript"], convey.ShouldEqual, stt.DefaultMockText)
			})

			convey.Convey("And the docs are served", func() {
				resp, err := http.Get(ts.URL + "/openapi.yaml")
				convey.So(err, convey.ShouldBeNil)
				defer resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When updating metrics", func() {
			svc := app.New()
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}
