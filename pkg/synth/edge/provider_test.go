package edge

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wanderpod/pkg/synth"
)

func setTestEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("EDGE_TTS_ORIGIN", "chrome-extension://test")
	t.Setenv("EDGE_TTS_USER_AGENT", "test-agent")
	t.Setenv("EDGE_TTS_TRUSTED_CLIENT_TOKEN", "token")
	t.Setenv("EDGE_TTS_SEC_MS_GEC_VERSION", "1-1.0.0.0")
	t.Setenv("EDGE_TTS_BASE_URL", baseURL)
}

func TestSynthesizeRequiresVoice(t *testing.T) {
	_, _, err := NewProvider(nil).Synthesize(context.Background(), "text", "")
	assert.Error(t, err)
}

func TestSynthesizeDialFailureFallsBack(t *testing.T) {
	// Nothing listens on port 1; the dial retries must exhaust and the
	// failure must be grounds for trying the next provider.
	setTestEnv(t, "ws://127.0.0.1:1/tts")

	_, _, err := NewProvider(nil).Synthesize(context.Background(), "text", "voice-1")
	require.Error(t, err)
	assert.True(t, synth.IsSynthesisError(err), "unreachable endpoint should trigger provider fallback")
}

func TestSynthesizeCancellationAborts(t *testing.T) {
	setTestEnv(t, "ws://127.0.0.1:1/tts")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewProvider(nil).Synthesize(ctx, "text", "voice-1")
	require.Error(t, err)
	assert.False(t, synth.IsSynthesisError(err), "a cancelled request must not look like a provider failure")
}

func TestAppendAudioFrameStripsHeader(t *testing.T) {
	header := []byte("Path:audio\r\n")
	payload := []byte{0xFF, 0xF3, 0x01, 0x02}

	frame := []byte{0, byte(len(header))}
	frame = append(frame, header...)
	frame = append(frame, payload...)

	var buf bytes.Buffer
	appendAudioFrame(frame, &buf)
	assert.Equal(t, payload, buf.Bytes())
}

func TestAppendAudioFrameIgnoresTruncated(t *testing.T) {
	var buf bytes.Buffer
	appendAudioFrame([]byte{0}, &buf)
	appendAudioFrame([]byte{0, 200, 'x'}, &buf)
	assert.Zero(t, buf.Len())
}

func TestBuildSSMLEscapesText(t *testing.T) {
	ssml := buildSSML("voice-1", `Fish & chips <cost> "little"`)
	assert.Contains(t, ssml, "Fish &amp; chips &lt;cost&gt;")
	assert.NotContains(t, ssml, "<cost>")
	assert.Contains(t, ssml, "<voice name='voice-1'>")
}
