package spool_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/okian/medscribe/internal/adapters/spool"
	"github.com/okian/medscribe/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSpool(t *testing.T) {
	_ = logger.Init()

	Convey("Given a spool in a temp dir", t, func() {
		dir := t.TempDir()
		s, err := spool.New(dir, spool.WithMaxBytes(16))
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When saving a small upload", func() {
			u, err := s.Save(ctx, "visit 1.wav", "audio/wav", strings.NewReader("RIFF-data"))

			Convey("Then a uniquely named file holds the bytes", func() {
				So(err, ShouldBeNil)
				So(u.Size, ShouldEqual, 9)
				So(u.Filename, ShouldEqual, "visit_1.wav")
				So(u.ContentType, ShouldEqual, "audio/wav")
				So(filepath.Dir(u.Path), ShouldEqual, dir)
				So(filepath.Base(u.Path), ShouldStartWith, "medscribe-")
				So(filepath.Base(u.Path), ShouldEndWith, "-visit_1.wav")
				data, rerr := os.ReadFile(u.Path)
				So(rerr, ShouldBeNil)
				So(string(data), ShouldEqual, "RIFF-data")
				So(s.Active(), ShouldEqual, 1)
			})

			Convey("And removing it deletes the file", func() {
				s.Remove(ctx, u)
				_, statErr := os.Stat(u.Path)
				So(os.IsNotExist(statErr), ShouldBeTrue)
				So(s.Active(), ShouldEqual, 0)

				Convey("And a second remove is harmless", func() {
					So(func() { s.Remove(ctx, u) }, ShouldNotPanic)
					So(s.Active(), ShouldEqual, 0)
				})
			})
		})

		Convey("When the upload exceeds the limit", func() {
			_, err := s.Save(ctx, "big.wav", "", bytes.NewReader(make([]byte, 17)))

			Convey("Then ErrTooLarge is returned and nothing is left behind", func() {
				So(errors.Is(err, spool.ErrTooLarge), ShouldBeTrue)
				entries, _ := os.ReadDir(dir)
				So(entries, ShouldBeEmpty)
				So(s.Active(), ShouldEqual, 0)
			})
		})

		Convey("When the upload is exactly at the limit", func() {
			u, err := s.Save(ctx, "edge.wav", "", bytes.NewReader(make([]byte, 16)))

			Convey("Then it is accepted", func() {
				So(err, ShouldBeNil)
				So(u.Size, ShouldEqual, 16)
			})
		})

		Convey("When many uploads with the same name arrive concurrently", func() {
			const n = 20
			paths := make(chan string, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					u, err := s.Save(ctx, "temp_audio.wav", "", strings.NewReader("x"))
					if err == nil {
						paths <- u.Path
					}
				}()
			}
			wg.Wait()
			close(paths)

			Convey("Then every upload gets its own path", func() {
				seen := map[string]bool{}
				for p := range paths {
					So(seen[p], ShouldBeFalse)
					seen[p] = true
				}
				So(len(seen), ShouldEqual, n)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := s.Save(cctx, "a.wav", "", strings.NewReader("x"))

			Convey("Then nothing is written", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				entries, _ := os.ReadDir(dir)
				So(entries, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a spool with a custom prefix in a missing directory", t, func() {
		dir := filepath.Join(t.TempDir(), "nested", "spool")
		s, err := spool.New(dir, spool.WithPrefix("scribe"))

		So(err, ShouldBeNil)
		So(s.Dir(), ShouldEqual, dir)
		So(s.MaxBytes(), ShouldEqual, int64(25<<20))
		u, err := s.Save(context.Background(), "a.wav", "", strings.NewReader("x"))
		So(err, ShouldBeNil)
		So(filepath.Base(u.Path), ShouldStartWith, "scribe-")
	})
}

func TestSanitizeFilename(t *testing.T) {
	Convey("Given client supplied file names", t, func() {
		cases := map[string]string{
			"recording.wav":             "recording.wav",
			"../../etc/passwd":          "passwd",
			`C:\Users\dr\note.m4a`:      "note.m4a",
			"visit (1).mp3":             "visit__1_.mp3",
			".hidden":                   "hidden",
			"":                          "upload",
			"..":                        "upload",
			strings.Repeat("a", 80) + ".wav": strings.Repeat("a", 60) + ".wav",
		}
		for in, want := range cases {
			So(spool.SanitizeFilename(in), ShouldEqual, want)
		}
	})
}
