package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/replaymeta/internal/domain/model"
)

func execute(stdin string, args ...string) (string, error) {
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	return out.String(), err
}

func TestReplayctl(t *testing.T) {
	Convey("Given payloads produced by generate", t, func() {
		out, err := execute("", "generate", "-n", "3", "--players", "4", "--roster", "8", "--algorithm", "crc32", "--seed", "9")
		So(err, ShouldBeNil)
		var texts []string
		So(json.Unmarshal([]byte(out), &texts), ShouldBeNil)
		So(texts, ShouldHaveLength, 3)

		Convey("decode reads them from stdin", func() {
			out, err := execute(texts[0], "decode", "-", "--algorithm", "crc32", "--seed", "9")
			So(err, ShouldBeNil)
			var m model.MatchMetadata
			So(json.Unmarshal([]byte(out), &m), ShouldBeNil)
			So(m.Players, ShouldHaveLength, 4)
			So(m.SchemaVersion, ShouldEqual, 4)

			Convey("and encode turns the JSON back into the same payload", func() {
				again, err := execute(out, "encode", "-", "--algorithm", "crc32", "--seed", "9")
				So(err, ShouldBeNil)
				So(again, ShouldEqual, texts[0])
			})

			Convey("and encode --actions output decodes as actions", func() {
				keys, err := execute(out, "encode", "-", "--actions", "--chunk-size", "64", "--algorithm", "crc32", "--seed", "9")
				So(err, ShouldBeNil)
				decoded, err := execute(keys, "decode", "-", "--format", "actions", "--algorithm", "crc32", "--seed", "9")
				So(err, ShouldBeNil)
				So(decoded, ShouldEqual, out)
			})
		})

		Convey("verify reports a valid payload", func() {
			out, err := execute(texts[1], "verify", "-", "--algorithm", "crc32", "--seed", "9")
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "VALID: match ")
		})

		Convey("verify rejects a payload checked with the wrong seed", func() {
			out, err := execute(texts[1], "verify", "-", "--algorithm", "crc32", "--seed", "10")
			So(err, ShouldNotBeNil)
			So(out, ShouldEqual, "INVALID: CHECKSUM_MISMATCH\n")
		})

		Convey("decode --skip-checksum ignores the seed", func() {
			_, err := execute(texts[2], "decode", "-", "--skip-checksum")
			So(err, ShouldBeNil)
		})
	})

	Convey("generate --out writes one file per match", t, func() {
		dir := filepath.Join(t.TempDir(), "payloads")
		out, err := execute("", "generate", "-n", "2", "-o", dir)
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, "wrote 2 payload(s)")
		files, err := os.ReadDir(dir)
		So(err, ShouldBeNil)
		So(files, ShouldHaveLength, 2)
	})

	Convey("Unknown formats are rejected", t, func() {
		_, err := execute("v1", "decode", "-", "--format", "xml")
		So(err, ShouldNotBeNil)
	})
}
