package logfields

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsRenderUnderStableKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))

	logger.Info("arch built",
		RunID("r1"), Plan("mac-cpu/Release"), Platform("mac"), Arch("arm64"), Variant("gpu"),
		Stage("build"), Library("libskia.a"), Patch("0001.patch"), Outcome("applied"),
		Path("/tmp/x"), Command("ninja -C out"), Dep("third_party/externals/dawn"),
		Revision("chrome/m126"), Name("skia"), URL("https://skia.googlesource.com/skia.git"),
		ExitCode(2), Attempt(3), DurationMS(float64((1500 * time.Millisecond).Milliseconds())),
		Error(errors.New("ninja: build stopped")))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	want := map[string]any{
		"level": "INFO", "msg": "arch built",
		KeyRunID: "r1", KeyPlan: "mac-cpu/Release", KeyPlatform: "mac", KeyArch: "arm64",
		KeyVariant: "gpu", KeyStage: "build", KeyLibrary: "libskia.a", KeyPatch: "0001.patch",
		KeyOutcome: "applied", KeyPath: "/tmp/x", KeyCommand: "ninja -C out",
		KeyDep: "third_party/externals/dawn", KeyRevision: "chrome/m126", KeyName: "skia",
		KeyURL: "https://skia.googlesource.com/skia.git",
		KeyExitCode: float64(2), KeyAttempt: float64(3), KeyDurationMS: float64(1500),
		KeyError: "ninja: build stopped",
	}
	assert.Equal(t, want, got)
}

func TestNilErrorIsEmpty(t *testing.T) {
	attr := Error(nil)
	assert.Equal(t, KeyError, attr.Key)
	assert.Empty(t, attr.Value.String())
}
